package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"ticket-exchange/internal/model"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Migrate(dir string) error {
	driver, err := postgres.WithInstance(s.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, nil)
}

// ── Users ────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, email, hash string, role model.Role) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, role) VALUES ($1,$2,$3)
		 RETURNING id, email, password_hash, role, created_at`, email, hash, role,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE email=$1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE id=$1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ── Balances ─────────────────────────────────────────

const balanceCols = `account_id, event_id, total_deposited, available, locked, total_withdrawn, total_profits, original_deposit`

func scanBalance(row *sql.Row) (*model.AccountBalance, error) {
	b := &model.AccountBalance{}
	err := row.Scan(&b.AccountID, &b.EventID, &b.TotalDeposited, &b.Available,
		&b.Locked, &b.TotalWithdrawn, &b.TotalProfits, &b.OriginalDeposit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (s *Store) GetBalance(ctx context.Context, account, event string) (*model.AccountBalance, error) {
	return scanBalance(s.DB.QueryRowContext(ctx,
		`SELECT `+balanceCols+` FROM balances WHERE account_id=$1 AND event_id=$2`, account, event))
}

// GetBalanceForUpdate locks the (account,event) row, creating a zero record on
// first touch. Every balance mutation goes through this lock.
func GetBalanceForUpdate(tx *sql.Tx, account, event string) (*model.AccountBalance, error) {
	if _, err := tx.Exec(
		`INSERT INTO balances (account_id, event_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
		account, event); err != nil {
		return nil, err
	}
	return scanBalance(tx.QueryRow(
		`SELECT `+balanceCols+` FROM balances WHERE account_id=$1 AND event_id=$2 FOR UPDATE`,
		account, event))
}

func PutBalance(tx *sql.Tx, b *model.AccountBalance) error {
	_, err := tx.Exec(
		`UPDATE balances SET total_deposited=$3, available=$4, locked=$5,
		 total_withdrawn=$6, total_profits=$7, original_deposit=$8
		 WHERE account_id=$1 AND event_id=$2`,
		b.AccountID, b.EventID, b.TotalDeposited, b.Available, b.Locked,
		b.TotalWithdrawn, b.TotalProfits, b.OriginalDeposit,
	)
	return err
}

func DeleteBalance(tx *sql.Tx, account, event string) error {
	_, err := tx.Exec(`DELETE FROM balances WHERE account_id=$1 AND event_id=$2`, account, event)
	return err
}

// ── Event ledger info ────────────────────────────────

func (s *Store) GetEventInfo(ctx context.Context, event string) (*model.EventInfo, error) {
	e := &model.EventInfo{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT event_id, ended, emergency_refund, total_deposited FROM ledger_events WHERE event_id=$1`,
		event,
	).Scan(&e.EventID, &e.Ended, &e.EmergencyRefund, &e.TotalDeposited)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// GetEventInfoForUpdate creates the per-event record lazily, as the ledger
// does on first deposit.
func GetEventInfoForUpdate(tx *sql.Tx, event string) (*model.EventInfo, error) {
	if _, err := tx.Exec(
		`INSERT INTO ledger_events (event_id) VALUES ($1) ON CONFLICT DO NOTHING`, event); err != nil {
		return nil, err
	}
	e := &model.EventInfo{}
	err := tx.QueryRow(
		`SELECT event_id, ended, emergency_refund, total_deposited FROM ledger_events WHERE event_id=$1 FOR UPDATE`,
		event,
	).Scan(&e.EventID, &e.Ended, &e.EmergencyRefund, &e.TotalDeposited)
	return e, err
}

func PutEventInfo(tx *sql.Tx, e *model.EventInfo) error {
	_, err := tx.Exec(
		`UPDATE ledger_events SET ended=$2, emergency_refund=$3, total_deposited=$4 WHERE event_id=$1`,
		e.EventID, e.Ended, e.EmergencyRefund, e.TotalDeposited,
	)
	return err
}

// ── Listings ─────────────────────────────────────────

const listingCols = `token_contract, token_id, event_id, seller, price, sale_type, active, listed_at`

func scanListing(row *sql.Row) (*model.Listing, error) {
	l := &model.Listing{}
	err := row.Scan(&l.TokenContract, &l.TokenID, &l.EventID, &l.Seller,
		&l.Price, &l.SaleType, &l.Active, &l.ListedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (s *Store) GetListing(ctx context.Context, contract string, tokenID int64) (*model.Listing, error) {
	return scanListing(s.DB.QueryRowContext(ctx,
		`SELECT `+listingCols+` FROM listings WHERE token_contract=$1 AND token_id=$2`,
		contract, tokenID))
}

func (s *Store) ListActiveListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+listingCols+` FROM listings WHERE active ORDER BY listed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Listing
	for rows.Next() {
		var l model.Listing
		if err := rows.Scan(&l.TokenContract, &l.TokenID, &l.EventID, &l.Seller,
			&l.Price, &l.SaleType, &l.Active, &l.ListedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertListing creates the key's row or reactivates a retired one. The
// conflict clause refuses to touch a row that is still active, so two
// concurrent creates for the same key cannot both win: the loser sees zero
// rows and gets the invalid-state error.
func InsertListing(tx *sql.Tx, l *model.Listing) error {
	res, err := tx.Exec(
		`INSERT INTO listings (`+listingCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (token_contract, token_id) DO UPDATE SET
		   event_id=$3, seller=$4, price=$5, sale_type=$6, active=$7, listed_at=$8
		 WHERE NOT listings.active`,
		l.TokenContract, l.TokenID, l.EventID, l.Seller, l.Price, l.SaleType, l.Active, l.ListedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: already listed", model.ErrInvalidState)
	}
	return nil
}

func SetListingActive(tx *sql.Tx, contract string, tokenID int64, active bool) error {
	_, err := tx.Exec(
		`UPDATE listings SET active=$3 WHERE token_contract=$1 AND token_id=$2`,
		contract, tokenID, active,
	)
	return err
}

// ── Auctions ─────────────────────────────────────────

func (s *Store) GetAuction(ctx context.Context, contract string, tokenID int64) (*model.Auction, error) {
	a := &model.Auction{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT token_contract, token_id, start_time, end_time, reserve_price, min_increment,
		        highest_bidder, highest_bid, status, extension_count
		 FROM auctions WHERE token_contract=$1 AND token_id=$2`, contract, tokenID,
	).Scan(&a.TokenContract, &a.TokenID, &a.StartTime, &a.EndTime, &a.ReservePrice,
		&a.MinIncrement, &a.HighestBidder, &a.HighestBid, &a.Status, &a.ExtensionCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Bids = make(map[string]int64)
	rows, err := s.DB.QueryContext(ctx,
		`SELECT bidder, amount FROM auction_bids
		 WHERE token_contract=$1 AND token_id=$2 ORDER BY first_bid_at`, contract, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bidder string
		var amount int64
		if err := rows.Scan(&bidder, &amount); err != nil {
			return nil, err
		}
		a.Bids[bidder] = amount
		a.Bidders = append(a.Bidders, bidder)
	}
	return a, rows.Err()
}

func UpsertAuction(tx *sql.Tx, a *model.Auction) error {
	_, err := tx.Exec(
		`INSERT INTO auctions (token_contract, token_id, start_time, end_time, reserve_price,
		                       min_increment, highest_bidder, highest_bid, status, extension_count)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (token_contract, token_id) DO UPDATE SET
		   start_time=$3, end_time=$4, reserve_price=$5, min_increment=$6,
		   highest_bidder=$7, highest_bid=$8, status=$9, extension_count=$10`,
		a.TokenContract, a.TokenID, a.StartTime, a.EndTime, a.ReservePrice,
		a.MinIncrement, a.HighestBidder, a.HighestBid, a.Status, a.ExtensionCount,
	)
	return err
}

func UpsertAuctionBid(tx *sql.Tx, contract string, tokenID int64, bidder string, amount int64) error {
	_, err := tx.Exec(
		`INSERT INTO auction_bids (token_contract, token_id, bidder, amount)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (token_contract, token_id, bidder) DO UPDATE SET amount=$4`,
		contract, tokenID, bidder, amount,
	)
	return err
}

// ── Sales ────────────────────────────────────────────

func InsertSale(tx *sql.Tx, sale *model.Sale) error {
	_, err := tx.Exec(
		`INSERT INTO sales (id, token_contract, token_id, event_id, seller, buyer, price, sale_type, sold_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sale.ID, sale.TokenContract, sale.TokenID, sale.EventID, sale.Seller,
		sale.Buyer, sale.Price, sale.SaleType, sale.SoldAt,
	)
	return err
}

func (s *Store) LastSale(ctx context.Context, contract string, tokenID int64) (*model.Sale, error) {
	sale := &model.Sale{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, token_contract, token_id, event_id, seller, buyer, price, sale_type, sold_at
		 FROM sales WHERE token_contract=$1 AND token_id=$2 ORDER BY sold_at DESC LIMIT 1`,
		contract, tokenID,
	).Scan(&sale.ID, &sale.TokenContract, &sale.TokenID, &sale.EventID, &sale.Seller,
		&sale.Buyer, &sale.Price, &sale.SaleType, &sale.SoldAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sale, err
}

// ── Payables ─────────────────────────────────────────

func AddPayable(tx *sql.Tx, event string, kind model.PayableKind, recipient string, amount int64) error {
	_, err := tx.Exec(
		`INSERT INTO payables (event_id, kind, recipient, amount) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (event_id, kind) DO UPDATE SET amount = payables.amount + $4, recipient = $3`,
		event, kind, recipient, amount,
	)
	return err
}

func GetPayableForUpdate(tx *sql.Tx, event string, kind model.PayableKind) (*model.Payable, error) {
	p := &model.Payable{}
	err := tx.QueryRow(
		`SELECT event_id, kind, recipient, amount FROM payables WHERE event_id=$1 AND kind=$2 FOR UPDATE`,
		event, kind,
	).Scan(&p.EventID, &p.Kind, &p.Recipient, &p.Amount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func SetPayableAmount(tx *sql.Tx, event string, kind model.PayableKind, amount int64) error {
	_, err := tx.Exec(
		`UPDATE payables SET amount=$3 WHERE event_id=$1 AND kind=$2`, event, kind, amount)
	return err
}

func (s *Store) GetPayable(ctx context.Context, event string, kind model.PayableKind) (*model.Payable, error) {
	p := &model.Payable{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT event_id, kind, recipient, amount FROM payables WHERE event_id=$1 AND kind=$2`,
		event, kind,
	).Scan(&p.EventID, &p.Kind, &p.Recipient, &p.Amount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *Store) SumPayables(ctx context.Context, kind model.PayableKind) (int64, error) {
	var total int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount),0) FROM payables WHERE kind=$1`, kind).Scan(&total)
	return total, err
}

// ── Tickets (issuance-side directory) ────────────────

const ticketCols = `token_contract, token_id, event_id, owner, event_name, seat_number, is_vip,
	minted_at, price_paid, is_used, is_transferable, venue, marketplace_used, approved`

func (s *Store) GetTicket(ctx context.Context, contract string, tokenID int64) (*model.Ticket, error) {
	t := &model.Ticket{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT `+ticketCols+` FROM tickets WHERE token_contract=$1 AND token_id=$2`,
		contract, tokenID,
	).Scan(&t.TokenContract, &t.TokenID, &t.EventID, &t.Owner, &t.EventName, &t.SeatNumber,
		&t.IsVIP, &t.MintedAt, &t.PricePaid, &t.IsUsed, &t.IsTransferable, &t.Venue,
		&t.MarketplaceUsed, &t.Approved)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func InsertTicket(tx *sql.Tx, t *model.Ticket) error {
	_, err := tx.Exec(
		`INSERT INTO tickets (`+ticketCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.TokenContract, t.TokenID, t.EventID, t.Owner, t.EventName, t.SeatNumber,
		t.IsVIP, t.MintedAt, t.PricePaid, t.IsUsed, t.IsTransferable, t.Venue,
		t.MarketplaceUsed, t.Approved,
	)
	return err
}

func SetTicketOwner(tx *sql.Tx, contract string, tokenID int64, owner string) error {
	_, err := tx.Exec(
		`UPDATE tickets SET owner=$3 WHERE token_contract=$1 AND token_id=$2`,
		contract, tokenID, owner)
	return err
}

// MarkTicketRefunded retires a refunded ticket so it cannot be used or resold.
func MarkTicketRefunded(tx *sql.Tx, contract string, tokenID int64) error {
	_, err := tx.Exec(
		`UPDATE tickets SET is_used=TRUE, is_transferable=FALSE WHERE token_contract=$1 AND token_id=$2`,
		contract, tokenID)
	return err
}

func (s *Store) MarkMarketplaceUsed(ctx context.Context, contract string, tokenID int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE tickets SET marketplace_used=TRUE WHERE token_contract=$1 AND token_id=$2`,
		contract, tokenID)
	return err
}

func (s *Store) GetTicketEvent(ctx context.Context, event string) (*model.TicketEvent, error) {
	e := &model.TicketEvent{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT event_id, name, organizer, start_time, cancelled, base_reference_price,
		        royalty_recipient, royalty_bps
		 FROM ticket_events WHERE event_id=$1`, event,
	).Scan(&e.EventID, &e.Name, &e.Organizer, &e.StartTime, &e.Cancelled,
		&e.BaseReferencePrice, &e.RoyaltyRecipient, &e.RoyaltyBps)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// ── Mint / refund counters ───────────────────────────

func AdjustMintCount(tx *sql.Tx, account, event string, delta int) error {
	_, err := tx.Exec(
		`INSERT INTO mint_counts (account_id, event_id, count) VALUES ($1,$2,GREATEST($3,0))
		 ON CONFLICT (account_id, event_id) DO UPDATE SET count = GREATEST(mint_counts.count + $3, 0)`,
		account, event, delta,
	)
	return err
}

// IncRefundCount bumps the per-account refund counter and returns the new
// value so the caller can enforce the cap.
func IncRefundCount(tx *sql.Tx, account string) (int, error) {
	var count int
	err := tx.QueryRow(
		`INSERT INTO refund_counts (account_id, count) VALUES ($1,1)
		 ON CONFLICT (account_id) DO UPDATE SET count = refund_counts.count + 1
		 RETURNING count`, account,
	).Scan(&count)
	return count, err
}

func (s *Store) GetRefundCount(ctx context.Context, account string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT count FROM refund_counts WHERE account_id=$1`, account).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// ── Verification ─────────────────────────────────────

func (s *Store) GetVerification(ctx context.Context, account string) (active bool, level int, found bool, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT active, level FROM verifications WHERE account_id=$1`, account,
	).Scan(&active, &level)
	if err == sql.ErrNoRows {
		return false, 0, false, nil
	}
	if err != nil {
		return false, 0, false, err
	}
	return active, level, true, nil
}

func (s *Store) UpsertVerification(ctx context.Context, account string, active bool, level int) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO verifications (account_id, active, level) VALUES ($1,$2,$3)
		 ON CONFLICT (account_id) DO UPDATE SET active=$2, level=$3`,
		account, active, level,
	)
	return err
}

// ── Event Log ────────────────────────────────────────

func AppendEvent(tx *sql.Tx, listingKey *string, evType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO event_log (listing_key, type, payload_json) VALUES ($1,$2,$3)`,
		listingKey, evType, b,
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, listingKey *string, limit int) ([]model.EventLog, error) {
	q := `SELECT id, listing_key, type, payload_json, created_at FROM event_log`
	var args []any
	if listingKey != nil {
		q += ` WHERE listing_key=$1`
		args = append(args, *listingKey)
	}
	q += ` ORDER BY created_at DESC LIMIT ` + fmt.Sprintf("%d", limit)
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.EventLog
	for rows.Next() {
		var e model.EventLog
		var raw []byte
		if err := rows.Scan(&e.ID, &e.ListingKey, &e.Type, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(raw, &e.PayloadJSON)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ── Summary ──────────────────────────────────────────

type Summary struct {
	ActiveListings   int   `json:"active_listings"`
	ActiveAuctions   int   `json:"active_auctions"`
	TotalSales       int   `json:"total_sales"`
	TotalDeposited   int64 `json:"total_deposited"`
	PlatformPayable  int64 `json:"platform_payable"`
	RoyaltiesPayable int64 `json:"royalties_payable"`
}

func (s *Store) GetSummary(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE active`).Scan(&sum.ActiveListings); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM auctions WHERE status='ACTIVE'`).Scan(&sum.ActiveAuctions); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&sum.TotalSales); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_deposited),0) FROM ledger_events`).Scan(&sum.TotalDeposited); err != nil {
		return nil, err
	}
	var err error
	if sum.PlatformPayable, err = s.SumPayables(ctx, model.PayablePlatform); err != nil {
		return nil, err
	}
	if sum.RoyaltiesPayable, err = s.SumPayables(ctx, model.PayableRoyalty); err != nil {
		return nil, err
	}
	return sum, nil
}
