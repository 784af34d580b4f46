// Package acceptance реализует машину состояний ожидающих заказов мейкера:
// посекундный обратный отсчёт и автоматический отказ по его истечении.
//
// Все переходы — чистые функции над неизменяемым снимком Board. Побочные
// эффекты (сохранение статуса, удаление из видимого списка) описываются
// значениями Effect и выполняются вызывающей стороной.
package acceptance

import "github.com/mmeshcher/homefood-system/internal/model"

// InitialCountdown — стартовое значение отсчёта для нового ожидающего заказа, секунд.
const InitialCountdown = 60

// Action описывает вид эффекта, порождённого переходом.
type Action string

const (
	ActionAccept     Action = "accept"
	ActionReject     Action = "reject"
	ActionAutoReject Action = "auto-reject"
)

// Effect описывает побочный эффект, который нужно выполнить после перехода.
type Effect struct {
	OrderID string
	Action  Action
}

// Status возвращает статус заказа, соответствующий действию.
func (a Action) Status() model.OrderStatus {
	if a == ActionAccept {
		return model.OrderStatusAccepted
	}
	return model.OrderStatusRejected
}

// Board — снимок отсчётов по заказам: идентификатор заказа → оставшиеся секунды.
// Заказ присутствует в снимке тогда и только тогда, когда он ожидает решения.
type Board map[string]int

// NewBoard создаёт пустой снимок.
func NewBoard() Board {
	return Board{}
}

// Remaining возвращает оставшиеся секунды отсчёта для заказа.
func (b Board) Remaining(orderID string) (int, bool) {
	seconds, ok := b[orderID]
	return seconds, ok
}

func (b Board) clone() Board {
	next := make(Board, len(b))
	for id, seconds := range b {
		next[id] = seconds
	}
	return next
}

// Observe строит снимок по свежезагруженному списку заказов. Отслеживаются
// только заказы в статусе pending, адресованные мейкеру makerID. Уже
// отслеживаемые заказы сохраняют текущий отсчёт, новые получают
// InitialCountdown, исчезнувшие из списка перестают отслеживаться.
func Observe(b Board, orders []model.Order, makerID string) Board {
	next := make(Board, len(orders))

	for _, o := range orders {
		if o.Status != model.OrderStatusPending {
			continue
		}
		if o.Maker.ID() != makerID {
			continue
		}

		if seconds, ok := b[o.ID]; ok {
			next[o.ID] = seconds
		} else {
			next[o.ID] = InitialCountdown
		}
	}

	return next
}

// Tick продвигает отсчёт всех отслеживаемых заказов на одну секунду.
// Заказы, чей отсчёт дошёл до нуля, исключаются из снимка, и для каждого
// порождается эффект auto-reject. Порядок эффектов между заказами,
// истёкшими в один тик, не определён.
func Tick(b Board) (Board, []Effect) {
	next := make(Board, len(b))
	var effects []Effect

	for id, seconds := range b {
		seconds--
		if seconds <= 0 {
			effects = append(effects, Effect{OrderID: id, Action: ActionAutoReject})
			continue
		}
		next[id] = seconds
	}

	return next, effects
}

// Accept обрабатывает ручное принятие заказа. Для неотслеживаемого заказа
// (уже разрешённого или неизвестного) переход — no-op без эффекта.
func Accept(b Board, orderID string) (Board, Effect, bool) {
	return resolve(b, orderID, ActionAccept)
}

// Reject обрабатывает ручной отказ от заказа. Повторный вызов для уже
// разрешённого заказа эффекта не порождает.
func Reject(b Board, orderID string) (Board, Effect, bool) {
	return resolve(b, orderID, ActionReject)
}

func resolve(b Board, orderID string, action Action) (Board, Effect, bool) {
	if _, ok := b[orderID]; !ok {
		return b, Effect{}, false
	}

	next := b.clone()
	delete(next, orderID)

	return next, Effect{OrderID: orderID, Action: action}, true
}
