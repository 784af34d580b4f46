// Package availability решает, принимает ли мейкер заказы в данный момент.
package availability

import (
	"fmt"
	"time"

	"github.com/mmeshcher/homefood-system/internal/model"
	"github.com/mmeshcher/homefood-system/internal/validation"
)

// UnavailableError возвращается при отказе в создании заказа и содержит
// настроенные часы работы мейкера для сообщения покупателю.
type UnavailableError struct {
	Start string
	End   string
}

func (e *UnavailableError) Error() string {
	if e.Start == "" && e.End == "" {
		return "maker is not accepting orders right now"
	}
	return fmt.Sprintf("maker is not available at this time. Online hours: %s - %s", e.Start, e.End)
}

// parseClock переводит строку HH:MM в минуты от начала суток.
func parseClock(s string) (int, error) {
	if !validation.IsValidClockTime(s) {
		return 0, fmt.Errorf("malformed clock time %q", s)
	}

	hours := int(s[0]-'0')*10 + int(s[1]-'0')
	minutes := int(s[3]-'0')*10 + int(s[4]-'0')

	return hours*60 + minutes, nil
}

// IsMakerAvailable сообщает, принимает ли мейкер заказы в момент now.
//
// При выключенном расписании ответ определяется только ручным флагом ShopOpen.
// При включённом расписании граничные минуты включаются с обеих сторон:
// в минуту окончания окна мейкер ещё открыт. Некорректно заданные границы
// трактуются как недоступность, а не как круглосуточный приём.
func IsMakerAvailable(policy model.AvailabilityPolicy, now time.Time) bool {
	if !policy.OnlineTimeEnabled {
		return policy.ShopOpen
	}

	startMinutes, err := parseClock(policy.OnlineTimeStart)
	if err != nil {
		return false
	}
	endMinutes, err := parseClock(policy.OnlineTimeEnd)
	if err != nil {
		return false
	}
	if startMinutes >= endMinutes {
		return false
	}

	nowMinutes := now.Hour()*60 + now.Minute()

	return startMinutes <= nowMinutes && nowMinutes <= endMinutes
}

// ValidateWindow проверяет корректность границ окна расписания: обе границы
// заданы в формате HH:MM и начало строго раньше конца. Окно действует в
// пределах одних суток, перенос через полночь не поддерживается.
func ValidateWindow(start, end string) error {
	startMinutes, err := parseClock(start)
	if err != nil {
		return err
	}
	endMinutes, err := parseClock(end)
	if err != nil {
		return err
	}
	if startMinutes >= endMinutes {
		return fmt.Errorf("window start %q must be before end %q", start, end)
	}
	return nil
}

// Authorize проверяет возможность создания заказа для мейкера в момент now.
// Операция не имеет побочных эффектов и безопасна для повторного вызова.
func Authorize(policy model.AvailabilityPolicy, now time.Time) error {
	if IsMakerAvailable(policy, now) {
		return nil
	}

	if policy.OnlineTimeEnabled {
		return &UnavailableError{
			Start: policy.OnlineTimeStart,
			End:   policy.OnlineTimeEnd,
		}
	}

	return &UnavailableError{}
}
