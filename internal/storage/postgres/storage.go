package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

// dbPool is the subset of pgxpool.Pool the storage needs; satisfied by
// pgxmock in tests.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   dbPool
	logger *slog.Logger
}

type userRepository struct {
	storage *Storage
}

type productRepository struct {
	storage *Storage
}

type orderRepository struct {
	storage *Storage
}

type paymentRepository struct {
	storage *Storage
}

type auditRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Factory methods for domain repositories.
func (s *Storage) Users() repository.UserRepository {
	return &userRepository{storage: s}
}

func (s *Storage) Products() repository.ProductRepository {
	return &productRepository{storage: s}
}

func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

func (s *Storage) Payments() repository.PaymentRepository {
	return &paymentRepository{storage: s}
}

func (s *Storage) Audit() repository.AuditRepository {
	return &auditRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            email TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'buyer',
            full_name TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS products (
            id SERIAL PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            original_price BIGINT NOT NULL,
            discount_percent INT NOT NULL DEFAULT 0,
            stock INT NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'active',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id SERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id),
            total BIGINT NOT NULL,
            currency TEXT NOT NULL DEFAULT 'KES',
            status TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS order_items (
            order_id BIGINT NOT NULL REFERENCES orders(id),
            product_id BIGINT NOT NULL REFERENCES products(id),
            quantity INT NOT NULL,
            unit_price BIGINT NOT NULL,
            PRIMARY KEY (order_id, product_id)
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            id SERIAL PRIMARY KEY,
            attempt_id TEXT UNIQUE NOT NULL,
            order_id BIGINT NOT NULL REFERENCES orders(id),
            phone TEXT NOT NULL,
            amount BIGINT NOT NULL,
            checkout_request_id TEXT NOT NULL DEFAULT '',
            receipt TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            fail_reason TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id SERIAL PRIMARY KEY,
            actor_id BIGINT,
            action TEXT NOT NULL,
            entity TEXT NOT NULL,
            entity_id TEXT NOT NULL DEFAULT '',
            meta JSONB NOT NULL DEFAULT '{}',
            at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_in_flight
            ON payments(order_id) WHERE status IN ('CREATED', 'AWAITING_CALLBACK')`,
		`CREATE INDEX IF NOT EXISTS idx_payments_checkout ON payments(checkout_request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// --- UserRepository implementation ---

func (r *userRepository) Create(ctx context.Context, email, passwordHash string, role model.Role, fullName string) (*model.User, error) {
	const query = `INSERT INTO users (email, password_hash, role, full_name) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	var u model.User
	err := r.storage.pool.QueryRow(ctx, query, email, passwordHash, role, fullName).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	u.Email = email
	u.PasswordHash = passwordHash
	u.Role = role
	u.FullName = fullName
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const query = `SELECT id, email, password_hash, role, full_name, created_at FROM users WHERE email=$1`
	return r.scanUser(r.storage.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT id, email, password_hash, role, full_name, created_at FROM users WHERE id=$1`
	return r.scanUser(r.storage.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FullName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// --- ProductRepository implementation ---

func (r *productRepository) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	const query = `INSERT INTO products (title, description, category, original_price, discount_percent, stock, status)
                   VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	created := *product
	err := r.storage.pool.QueryRow(ctx, query,
		product.Title, product.Description, product.Category,
		product.OriginalPrice, product.DiscountPercent, product.Stock, product.Status,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	const query = `SELECT id, title, description, category, original_price, discount_percent, stock, status, created_at
                   FROM products WHERE id=$1`
	var p model.Product
	err := r.storage.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.Description, &p.Category,
		&p.OriginalPrice, &p.DiscountPercent, &p.Stock, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) ListActive(ctx context.Context) ([]model.Product, error) {
	const query = `SELECT id, title, description, category, original_price, discount_percent, stock, status, created_at
                   FROM products WHERE status='active' ORDER BY created_at DESC`
	rows, err := r.storage.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Category,
			&p.OriginalPrice, &p.DiscountPercent, &p.Stock, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- OrderRepository implementation ---

func (r *orderRepository) Create(ctx context.Context, order *model.Order) (*model.Order, error) {
	created := *order
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		const insertOrder = `INSERT INTO orders (user_id, total, currency, status)
                             VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, insertOrder, order.UserID, order.Total, order.Currency, order.Status).
			Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt); err != nil {
			return err
		}

		const insertItem = `INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`
		for _, item := range order.Items {
			if _, err := tx.Exec(ctx, insertItem, created.ID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	const query = `SELECT id, user_id, total, currency, status, created_at, updated_at FROM orders WHERE id=$1`
	var o model.Order
	err := r.storage.pool.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.UserID, &o.Total, &o.Currency, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}

	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *orderRepository) itemsFor(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	const query = `SELECT product_id, quantity, unit_price FROM order_items WHERE order_id=$1 ORDER BY product_id`
	rows, err := r.storage.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	const query = `SELECT id, user_id, total, currency, status, created_at, updated_at
                   FROM orders WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.storage.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, &o.Currency, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- PaymentRepository implementation ---

func (r *paymentRepository) CreateAttempt(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	const query = `INSERT INTO payments (attempt_id, order_id, phone, amount, status)
                   VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
	created := *payment
	err := r.storage.pool.QueryRow(ctx, query,
		payment.AttemptID, payment.OrderID, payment.Phone, payment.Amount, payment.Status,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// The partial unique index admits one non-terminal attempt per order.
			return nil, domainErrors.ErrPaymentInFlight
		}
		return nil, err
	}
	return &created, nil
}

const paymentColumns = `id, attempt_id, order_id, phone, amount, checkout_request_id, receipt, status, fail_reason, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.AttemptID, &p.OrderID, &p.Phone, &p.Amount,
		&p.CheckoutRequestID, &p.Receipt, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) GetByAttemptID(ctx context.Context, attemptID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE attempt_id=$1`
	return scanPayment(r.storage.pool.QueryRow(ctx, query, attemptID))
}

func (r *paymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE checkout_request_id=$1`
	return scanPayment(r.storage.pool.QueryRow(ctx, query, checkoutRequestID))
}

func (r *paymentRepository) MarkAwaiting(ctx context.Context, paymentID int64, checkoutRequestID string) (bool, error) {
	const query = `UPDATE payments SET status=$1, checkout_request_id=$2, updated_at=NOW()
                   WHERE id=$3 AND status=$4`
	tag, err := r.storage.pool.Exec(ctx, query,
		model.PaymentStatusAwaitingCallback, checkoutRequestID, paymentID, model.PaymentStatusCreated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepository) Fail(ctx context.Context, paymentID int64, reason string) (bool, error) {
	const query = `UPDATE payments SET status=$1, fail_reason=$2, updated_at=NOW()
                   WHERE id=$3 AND status IN ($4, $5)`
	tag, err := r.storage.pool.Exec(ctx, query,
		model.PaymentStatusFailed, reason, paymentID,
		model.PaymentStatusCreated, model.PaymentStatusAwaitingCallback)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepository) Confirm(ctx context.Context, paymentID int64, receipt string) (bool, []repository.StockShortfall, error) {
	var (
		applied    bool
		shortfalls []repository.StockShortfall
	)
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		const confirmPayment = `UPDATE payments SET status=$1, receipt=$2, updated_at=NOW()
                                WHERE id=$3 AND status=$4 RETURNING order_id`
		var orderID int64
		err := tx.QueryRow(ctx, confirmPayment,
			model.PaymentStatusConfirmed, receipt, paymentID, model.PaymentStatusAwaitingCallback,
		).Scan(&orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Concurrent duplicate delivery already settled this attempt.
				return nil
			}
			return err
		}
		applied = true

		const selectItems = `SELECT product_id, quantity FROM order_items WHERE order_id=$1 ORDER BY product_id`
		rows, err := tx.Query(ctx, selectItems, orderID)
		if err != nil {
			return err
		}
		type line struct {
			productID int64
			quantity  int
		}
		var lines []line
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.productID, &l.quantity); err != nil {
				rows.Close()
				return err
			}
			lines = append(lines, l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, l := range lines {
			const lockStock = `SELECT stock FROM products WHERE id=$1 FOR UPDATE`
			var stock int
			if err := tx.QueryRow(ctx, lockStock, l.productID).Scan(&stock); err != nil {
				return err
			}
			if stock < l.quantity {
				shortfalls = append(shortfalls, repository.StockShortfall{
					ProductID: l.productID,
					Requested: l.quantity,
					Available: stock,
				})
			}
			remaining := stock - l.quantity
			if remaining < 0 {
				remaining = 0
			}
			const updateStock = `UPDATE products SET stock=$1 WHERE id=$2`
			if _, err := tx.Exec(ctx, updateStock, remaining, l.productID); err != nil {
				return err
			}
		}

		const confirmOrder = `UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
		if _, err := tx.Exec(ctx, confirmOrder, model.OrderStatusConfirmed, orderID, model.OrderStatusPending); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return applied, shortfalls, nil
}

func (r *paymentRepository) FailWithOrder(ctx context.Context, paymentID int64, reason string) (bool, error) {
	var applied bool
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		const failPayment = `UPDATE payments SET status=$1, fail_reason=$2, updated_at=NOW()
                             WHERE id=$3 AND status=$4 RETURNING order_id`
		var orderID int64
		err := tx.QueryRow(ctx, failPayment,
			model.PaymentStatusFailed, reason, paymentID, model.PaymentStatusAwaitingCallback,
		).Scan(&orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		applied = true

		const failOrder = `UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
		if _, err := tx.Exec(ctx, failOrder, model.OrderStatusFailed, orderID, model.OrderStatusPending); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *paymentRepository) ListStuckAwaiting(ctx context.Context, olderThan time.Duration, limit int) ([]model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
              WHERE status=$1 AND updated_at < $2 ORDER BY updated_at LIMIT $3`
	cutoff := time.Now().Add(-olderThan)
	rows, err := r.storage.pool.Query(ctx, query, model.PaymentStatusAwaitingCallback, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.AttemptID, &p.OrderID, &p.Phone, &p.Amount,
			&p.CheckoutRequestID, &p.Receipt, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- AuditRepository implementation ---

func (r *auditRepository) Record(ctx context.Context, entry model.AuditEntry) error {
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	const query = `INSERT INTO audit_log (actor_id, action, entity, entity_id, meta) VALUES ($1, $2, $3, $4, $5)`
	var actor any
	if entry.ActorID != 0 {
		actor = entry.ActorID
	}
	_, err = r.storage.pool.Exec(ctx, query, actor, entry.Action, entry.Entity, entry.EntityID, encoded)
	return err
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Logger returns storage logger.
func (s *Storage) Logger() *slog.Logger {
	return s.logger
}
