// Package storage is the SQLite persistence layer. It owns the schema and
// every row mutation; the aggregator and the HTTP layer only see domain
// types through the port interfaces.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yabolb/familyflow/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// scanAmount parses a stored amount. Unparseable values are coerced to
// zero and logged; the aggregator reports them as skipped rows instead of
// failing the whole read.
func scanAmount(ctx context.Context, raw, table, id string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		slog.WarnContext(ctx, "Unparseable amount coerced to zero",
			"table", table, "id", id, "raw", raw)
		return decimal.Zero
	}
	return d
}

// ---- Families ----

// CreateFamily inserts a family with a generated id and invite code.
func (r *Repository) CreateFamily(ctx context.Context, name string) (core.Family, error) {
	f := core.Family{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(name),
		InviteCode: strings.ToUpper(uuid.NewString()[:8]),
		CreatedAt:  time.Now().UTC(),
	}
	if err := f.Validate(); err != nil {
		return core.Family{}, err
	}

	const q = `INSERT INTO families (id, name, invite_code, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, f.ID, f.Name, f.InviteCode, f.CreatedAt); err != nil {
		return core.Family{}, fmt.Errorf("insert family: %w", err)
	}

	slog.InfoContext(ctx, "Family created", "family_id", f.ID, "name", f.Name)
	return f, nil
}

func (r *Repository) GetFamily(ctx context.Context, id string) (core.Family, error) {
	const q = `SELECT id, name, invite_code, created_at FROM families WHERE id = ?`
	return r.scanFamily(r.db.QueryRowContext(ctx, q, id))
}

// GetFamilyByInvite resolves an invite code to its family.
func (r *Repository) GetFamilyByInvite(ctx context.Context, code string) (core.Family, error) {
	const q = `SELECT id, name, invite_code, created_at FROM families WHERE invite_code = ?`
	return r.scanFamily(r.db.QueryRowContext(ctx, q, strings.ToUpper(strings.TrimSpace(code))))
}

func (r *Repository) scanFamily(row *sql.Row) (core.Family, error) {
	var f core.Family
	err := row.Scan(&f.ID, &f.Name, &f.InviteCode, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return core.Family{}, ErrNotFound
	}
	if err != nil {
		return core.Family{}, fmt.Errorf("scan family: %w", err)
	}
	return f, nil
}

// ---- Categories ----

// ListCategories returns system-wide categories plus the family's own.
func (r *Repository) ListCategories(ctx context.Context, familyID string) ([]core.Category, error) {
	const q = `SELECT id, COALESCE(family_id, ''), name, icon, type
		FROM categories
		WHERE family_id IS NULL OR family_id = ?
		ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, familyID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.Name, &c.Icon, &c.Type); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- Transactions ----

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = core.StatusPaid
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	const q = `INSERT INTO transactions (id, family_id, category_id, user_id, amount, date, status, description)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		tx.ID, tx.FamilyID, tx.CategoryID, userIDOf(ctx),
		tx.Amount.String(), tx.Date.UTC(), string(tx.Status), tx.Description)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"family_id", tx.FamilyID,
		"amount", tx.Amount.String(),
		"description", tx.Description)
	return tx, nil
}

// ListTransactions implements budget.TransactionReader. Dates are matched
// inclusively on both ends; soft-deleted rows never surface.
func (r *Repository) ListTransactions(ctx context.Context, familyID string, from, to time.Time) ([]core.Transaction, error) {
	const q = `SELECT t.id, t.family_id, COALESCE(t.category_id, ''), t.amount, t.date, t.status, t.description,
			c.id, c.name, c.icon, c.type
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.family_id = ? AND t.date >= ? AND t.date <= ? AND t.deleted_at IS NULL
		ORDER BY t.date, t.created_at`
	rows, err := r.db.QueryContext(ctx, q, familyID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx        core.Transaction
			rawAmount string
			catID     sql.NullString
			catName   sql.NullString
			catIcon   sql.NullString
			catType   sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.FamilyID, &tx.CategoryID, &rawAmount, &tx.Date, &tx.Status, &tx.Description,
			&catID, &catName, &catIcon, &catType); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Amount = scanAmount(ctx, rawAmount, "transactions", tx.ID)
		if catID.Valid {
			tx.Category = &core.Category{
				ID:   catID.String,
				Name: catName.String,
				Icon: catIcon.String,
				Type: core.CategoryType(catType.String),
			}
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// DeleteTransaction soft deletes so rollups can be reconciled later.
func (r *Repository) DeleteTransaction(ctx context.Context, familyID, id string) error {
	const q = `UPDATE transactions SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND family_id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id, familyID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, familyID, id string) (core.Transaction, error) {
	const q = `SELECT t.id, t.family_id, COALESCE(t.category_id, ''), t.amount, t.date, t.status, t.description
		FROM transactions t
		WHERE t.id = ? AND t.family_id = ? AND t.deleted_at IS NULL`
	var (
		tx        core.Transaction
		rawAmount string
	)
	err := r.db.QueryRowContext(ctx, q, id, familyID).Scan(
		&tx.ID, &tx.FamilyID, &tx.CategoryID, &rawAmount, &tx.Date, &tx.Status, &tx.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	tx.Amount = scanAmount(ctx, rawAmount, "transactions", tx.ID)
	return tx, nil
}

// CountTransactions implements part of budget.FeedbackReader.
func (r *Repository) CountTransactions(ctx context.Context, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM transactions WHERE user_id = ? AND deleted_at IS NULL`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// ---- Expense templates ----

func (r *Repository) CreateTemplate(ctx context.Context, tpl core.ExpenseTemplate) (core.ExpenseTemplate, error) {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.Active = true
	if err := tpl.Validate(); err != nil {
		return core.ExpenseTemplate{}, err
	}

	const q = `INSERT INTO expense_templates (id, family_id, category_id, amount, frequency, due_day, due_month, is_active, description)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, 1, ?)`
	_, err := r.db.ExecContext(ctx, q,
		tpl.ID, tpl.FamilyID, tpl.CategoryID, tpl.Amount.String(),
		string(tpl.Frequency), tpl.DueDay, tpl.DueMonth, tpl.Description)
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("insert template: %w", err)
	}

	slog.InfoContext(ctx, "Expense template saved",
		"id", tpl.ID,
		"family_id", tpl.FamilyID,
		"frequency", string(tpl.Frequency))
	return tpl, nil
}

// ListActiveTemplates implements budget.TemplateReader.
func (r *Repository) ListActiveTemplates(ctx context.Context, familyID string) ([]core.ExpenseTemplate, error) {
	const q = templateSelect + ` WHERE family_id = ? AND is_active = 1 ORDER BY created_at`
	return r.queryTemplates(ctx, q, familyID)
}

// ListAllActiveTemplates returns active templates across every family,
// for the recurring worker.
func (r *Repository) ListAllActiveTemplates(ctx context.Context) ([]core.ExpenseTemplate, error) {
	const q = templateSelect + ` WHERE is_active = 1 ORDER BY family_id, created_at`
	return r.queryTemplates(ctx, q)
}

const templateSelect = `SELECT id, family_id, COALESCE(category_id, ''), amount, frequency, due_day, due_month, is_active, description, last_run_at
	FROM expense_templates`

func (r *Repository) queryTemplates(ctx context.Context, q string, args ...any) ([]core.ExpenseTemplate, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseTemplate
	for rows.Next() {
		var (
			tpl       core.ExpenseTemplate
			rawAmount string
			lastRun   sql.NullTime
		)
		if err := rows.Scan(&tpl.ID, &tpl.FamilyID, &tpl.CategoryID, &rawAmount,
			&tpl.Frequency, &tpl.DueDay, &tpl.DueMonth, &tpl.Active, &tpl.Description, &lastRun); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpl.Amount = scanAmount(ctx, rawAmount, "expense_templates", tpl.ID)
		if lastRun.Valid {
			tpl.LastRunAt = lastRun.Time
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// DeactivateTemplate turns a template off without losing its history.
func (r *Repository) DeactivateTemplate(ctx context.Context, familyID, id string) error {
	const q = `UPDATE expense_templates SET is_active = 0 WHERE id = ? AND family_id = ? AND is_active = 1`
	res, err := r.db.ExecContext(ctx, q, id, familyID)
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkTemplateRun records the last materialization time.
func (r *Repository) MarkTemplateRun(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE expense_templates SET last_run_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, at.UTC(), id); err != nil {
		return fmt.Errorf("mark template run: %w", err)
	}
	return nil
}

// ---- Feedback ----

func (r *Repository) CreateFeedback(ctx context.Context, userID string, rating int, comment string) error {
	const q = `INSERT INTO feedback (id, user_id, rating, comment) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, uuid.NewString(), userID, rating, comment); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	slog.InfoContext(ctx, "Feedback recorded", "user_id", userID, "rating", rating)
	return nil
}

// HasResponded implements part of budget.FeedbackReader.
func (r *Repository) HasResponded(ctx context.Context, userID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM feedback WHERE user_id = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check feedback: %w", err)
	}
	return exists, nil
}

// ---- Chat transcript ----

// ChatMessage is one stored advisor turn.
type ChatMessage struct {
	ID        string
	FamilyID  string
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

func (r *Repository) AppendChatMessage(ctx context.Context, m ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	const q = `INSERT INTO chat_messages (id, family_id, user_id, role, content) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, m.ID, m.FamilyID, m.UserID, m.Role, m.Content); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListRecentChatMessages returns the newest limit messages in
// chronological order.
func (r *Repository) ListRecentChatMessages(ctx context.Context, familyID string, limit int) ([]ChatMessage, error) {
	const q = `SELECT id, family_id, user_id, role, content, created_at
		FROM (
			SELECT id, family_id, user_id, role, content, created_at
			FROM chat_messages WHERE family_id = ?
			ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, familyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// userIDOf pulls the acting user id out of the request context; empty when
// the caller is a worker.
func userIDOf(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}
	return ""
}

type userIDKey struct{}

// WithUserID tags a context with the acting user, so writes can attribute
// rows without threading another parameter everywhere.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}
