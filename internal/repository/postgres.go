// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/homefood-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrMakerNotFound возвращается, если мейкер не найден.
var (
	ErrMakerNotFound = errors.New("maker not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDishNotFound возвращается, если блюдо не найдено.
	ErrDishNotFound = errors.New("dish not found")
	// ErrOrderAlreadyResolved возвращается при попытке изменить статус заказа,
	// уже переведённого в терминальное состояние.
	ErrOrderAlreadyResolved = errors.New("order already resolved")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сериализационных конфликтах, дедлоках
// и сетевых сбоях.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateMaker сохраняет запись нового мейкера.
func (r *PostgresRepository) CreateMaker(ctx context.Context, m model.Maker) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO makers (id, first_name, last_name, phone, email, address, cuisine_types,
		                     shop_open, online_time_enabled, online_time_start, online_time_end)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.FirstName, m.LastName, m.Phone, m.Email, m.Address, m.CuisineTypes,
		m.Policy.ShopOpen, m.Policy.OnlineTimeEnabled, m.Policy.OnlineTimeStart, m.Policy.OnlineTimeEnd,
	)
	if err != nil {
		return fmt.Errorf("create maker: %w", err)
	}
	return nil
}

// GetMaker возвращает мейкера по идентификатору.
func (r *PostgresRepository) GetMaker(ctx context.Context, id string) (*model.Maker, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, phone, email, address, cuisine_types,
		        shop_open, online_time_enabled, online_time_start, online_time_end, created_at
		 FROM makers WHERE id = $1`,
		id,
	)

	var m model.Maker
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Phone, &m.Email, &m.Address, &m.CuisineTypes,
		&m.Policy.ShopOpen, &m.Policy.OnlineTimeEnabled, &m.Policy.OnlineTimeStart, &m.Policy.OnlineTimeEnd,
		&m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMakerNotFound
		}
		return nil, fmt.Errorf("get maker: %w", err)
	}

	return &m, nil
}

// UpdateMakerPolicy обновляет политику доступности мейкера.
func (r *PostgresRepository) UpdateMakerPolicy(ctx context.Context, id string, policy model.AvailabilityPolicy) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE makers
		 SET shop_open = $2, online_time_enabled = $3, online_time_start = $4, online_time_end = $5
		 WHERE id = $1`,
		id, policy.ShopOpen, policy.OnlineTimeEnabled, policy.OnlineTimeStart, policy.OnlineTimeEnd,
	)
	if err != nil {
		return fmt.Errorf("update maker policy: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrMakerNotFound
	}
	return nil
}

// CreateOrder сохраняет новый заказ. Статус заказа при создании всегда pending.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO orders (id, items, amount, del_address, maker_id, customer_id, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, items, o.AmountCents, o.DeliveryAddress, o.Maker.ID(), o.CustomerID,
			string(model.OrderStatusPending),
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o       model.Order
		items   []byte
		makerID string
		status  string
	)

	err := row.Scan(&o.ID, &items, &o.AmountCents, &o.DeliveryAddress, &makerID,
		&o.CustomerID, &status, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}

	o.Maker = model.NewMakerRef(makerID)
	o.Status = model.OrderStatus(status)

	return &o, nil
}

const orderColumns = `id, items, amount, del_address, maker_id, customer_id, status, created_at`

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) selectOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetPendingOrdersByMaker возвращает заказы мейкера, ожидающие его решения.
func (r *PostgresRepository) GetPendingOrdersByMaker(ctx context.Context, makerID string) ([]model.Order, error) {
	return r.selectOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE maker_id = $1 AND status = $2
		 ORDER BY created_at DESC`,
		makerID, string(model.OrderStatusPending),
	)
}

// GetOrdersByCustomer возвращает историю заказов покупателя.
func (r *PostgresRepository) GetOrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	return r.selectOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
}

// UpdateOrderStatus переводит заказ в терминальный статус. Переход разрешён
// только из pending: статус заказа монотонен, повторное разрешение
// возвращает ErrOrderAlreadyResolved вместе с текущим состоянием заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	var updated *model.Order

	err := r.withRetry(ctx, func() error {
		o, err := scanOrder(r.pool.QueryRow(ctx,
			`UPDATE orders SET status = $2
			 WHERE id = $1 AND status = $3
			 RETURNING `+orderColumns,
			id, string(status), string(model.OrderStatusPending),
		))
		if err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	// Строка не обновлена: либо заказа нет, либо он уже разрешён.
	current, err := r.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrOrderAlreadyResolved
}

// DeleteExpiredOrders удаляет заказы старше указанного возраста и возвращает
// количество удалённых строк.
func (r *PostgresRepository) DeleteExpiredOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	var deleted int64

	err := r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`DELETE FROM orders WHERE created_at < $1`,
			time.Now().Add(-olderThan),
		)
		if err != nil {
			return fmt.Errorf("delete expired orders: %w", err)
		}
		deleted = cmdTag.RowsAffected()
		return nil
	})

	return deleted, err
}

// CreateDish сохраняет блюдо в каталоге мейкера.
func (r *PostgresRepository) CreateDish(ctx context.Context, d model.Dish) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO dishes (id, maker_id, name, description, price, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.MakerID, d.Name, d.Description, d.PriceCents, d.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("create dish: %w", err)
	}
	return nil
}

// GetDish возвращает блюдо по идентификатору.
func (r *PostgresRepository) GetDish(ctx context.Context, id string) (*model.Dish, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, maker_id, name, description, price, image_url, created_at
		 FROM dishes WHERE id = $1`,
		id,
	)

	var d model.Dish
	err := row.Scan(&d.ID, &d.MakerID, &d.Name, &d.Description, &d.PriceCents, &d.ImageURL, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDishNotFound
		}
		return nil, fmt.Errorf("get dish: %w", err)
	}

	return &d, nil
}

// GetDishesByMaker возвращает каталог блюд мейкера.
func (r *PostgresRepository) GetDishesByMaker(ctx context.Context, makerID string) ([]model.Dish, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, maker_id, name, description, price, image_url, created_at
		 FROM dishes WHERE maker_id = $1
		 ORDER BY created_at`,
		makerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select dishes: %w", err)
	}
	defer rows.Close()

	var dishes []model.Dish
	for rows.Next() {
		var d model.Dish
		if err := rows.Scan(&d.ID, &d.MakerID, &d.Name, &d.Description, &d.PriceCents, &d.ImageURL, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dish: %w", err)
		}
		dishes = append(dishes, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return dishes, nil
}

// UpdateDish обновляет блюдо в каталоге.
func (r *PostgresRepository) UpdateDish(ctx context.Context, d model.Dish) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE dishes SET name = $2, description = $3, price = $4, image_url = $5
		 WHERE id = $1`,
		d.ID, d.Name, d.Description, d.PriceCents, d.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("update dish: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrDishNotFound
	}
	return nil
}

// DeleteDish удаляет блюдо из каталога.
func (r *PostgresRepository) DeleteDish(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM dishes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dish: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrDishNotFound
	}
	return nil
}
