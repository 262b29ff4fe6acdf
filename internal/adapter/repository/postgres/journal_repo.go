package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// JournalRepository implements usecase.JournalRepository.
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

const entryColumns = `id, number, entry_date, description, reference, currency, status, reversal_of, posted_at, created_at, updated_at, created_by`

// Create persists an entry with its lines inside the caller's transaction.
func (r *JournalRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	q := txq(tx)

	_, err := q.Exec(ctx, `
		INSERT INTO journal_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.Number, tsz(entry.Date), entry.Description,
		entry.Reference, entry.Currency, string(entry.Status), entry.ReversalOf,
		tszPtr(entry.PostedAt), tsz(entry.CreatedAt), tsz(entry.UpdatedAt),
		entry.CreatedBy,
	)
	if err != nil {
		return err
	}

	for i := range entry.Lines {
		line := &entry.Lines[i]
		_, err := q.Exec(ctx, `
			INSERT INTO journal_lines (id, entry_id, account_id, debit, credit, memo, ordinal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			line.ID, entry.ID, line.AccountID, int64(line.Debit), int64(line.Credit), line.Memo, i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves an entry with its lines.
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return r.getEntry(ctx, r.pool, id, "")
}

// GetByIDForUpdate retrieves an entry with a FOR UPDATE lock so posting
// and reversal serialize on the entry row.
func (r *JournalRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error) {
	return r.getEntry(ctx, txq(tx), id, " FOR UPDATE")
}

func (r *JournalRepository) getEntry(ctx context.Context, q querier, id, suffix string) (*domain.JournalEntry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`+suffix, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}

	if err := r.loadLines(ctx, q, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *JournalRepository) loadLines(ctx context.Context, q querier, entry *domain.JournalEntry) error {
	rows, err := q.Query(ctx, `
		SELECT id, entry_id, account_id, debit, credit, memo
		FROM journal_lines
		WHERE entry_id = $1
		ORDER BY ordinal`,
		entry.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line          domain.JournalLine
			debit, credit int64
		)
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &debit, &credit, &line.Memo); err != nil {
			return err
		}
		line.Debit = domain.Money(debit)
		line.Credit = domain.Money(credit)
		entry.Lines = append(entry.Lines, line)
	}
	return rows.Err()
}

// MarkPosted flips a draft entry to posted.
func (r *JournalRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE journal_entries
		SET status = $2, posted_at = $3, updated_at = $3
		WHERE id = $1`,
		id, string(domain.EntryPosted), tsz(postedAt),
	)
	return err
}

// List lists entries newest-first, without lines.
func (r *JournalRepository) List(ctx context.Context, page domain.Page) ([]*domain.JournalEntry, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM journal_entries`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		ORDER BY entry_date DESC, number DESC
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]*domain.JournalEntry, 0, page.PerPage)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

// BalancesThrough aggregates posted lines per account, dates in (from, asOf].
func (r *JournalRepository) BalancesThrough(ctx context.Context, from, asOf time.Time) ([]usecase.BalanceRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.code, a.name, a.class,
		       COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM accounts a
		JOIN journal_lines l ON l.account_id = a.id
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.status = $1
		  AND e.entry_date <= $2
		  AND ($3::timestamptz IS NULL OR e.entry_date > $3)
		GROUP BY a.id, a.code, a.name, a.class
		ORDER BY a.code`,
		string(domain.EntryPosted), tsz(asOf), nullableTime(from),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []usecase.BalanceRow
	for rows.Next() {
		var (
			row             usecase.BalanceRow
			class           string
			debits, credits int64
		)
		if err := rows.Scan(&row.AccountID, &row.AccountCode, &row.AccountName, &class, &debits, &credits); err != nil {
			return nil, err
		}
		row.Class = domain.AccountClass(class)
		row.Debits = domain.Money(debits)
		row.Credits = domain.Money(credits)
		balances = append(balances, row)
	}
	return balances, rows.Err()
}

// NextSequence reserves the next entry number for a year.
func (r *JournalRepository) NextSequence(ctx context.Context, tx usecase.Transaction, year int) (int64, error) {
	return nextDocumentSeq(ctx, txq(tx), "journal_entry", year)
}

func scanEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var (
		e        domain.JournalEntry
		status   string
		postedAt *time.Time
	)
	err := row.Scan(
		&e.ID, &e.Number, &e.Date, &e.Description, &e.Reference, &e.Currency,
		&status, &e.ReversalOf, &postedAt, &e.CreatedAt, &e.UpdatedAt, &e.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	e.Status = domain.EntryStatus(status)
	e.PostedAt = postedAt
	return &e, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
