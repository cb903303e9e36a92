// README: Account store backed by PostgreSQL; flag clearing runs in the same transaction as the write.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/apperr"
	"ridehail/internal/infra"
	"ridehail/internal/types"
)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func constraintOf(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// lockOwner serializes default and favorite flagging per user for the rest
// of tx.
func lockOwner(ctx context.Context, tx infra.DBTX, userID types.ID) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, string(userID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("user", "Profile not found")
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// flagConflict maps a violation of the single default or single favorite
// index to Conflict.
func flagConflict(err error) error {
	name, ok := constraintOf(err)
	if !ok {
		return nil
	}
	switch name {
	case "payment_methods_one_default":
		return apperr.Conflict("is_default", "Another default payment method was set at the same time")
	case "saved_locations_one_favorite":
		return apperr.Conflict("is_favorite", "Another favorite location was set at the same time")
	}
	return nil
}

// CreateUser inserts u together with its first payment method. An existing
// user with the same id is returned unchanged with created=false.
func (s *Store) CreateUser(ctx context.Context, u *User, first *PaymentMethod) (*User, bool, error) {
	created := false
	err := infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, phone_number, full_name, is_verified, date_joined)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			string(u.ID), u.Email, u.PhoneNumber, u.FullName, u.IsVerified, u.DateJoined)
		if err != nil {
			if _, ok := constraintOf(err); ok {
				return apperr.InvalidInput("email", "A user with this email already exists")
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true
		return insertPaymentMethod(ctx, tx, first)
	})
	if err != nil {
		return nil, false, err
	}
	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return nil, false, err
	}
	return got, created, nil
}

func (s *Store) GetUser(ctx context.Context, id types.ID) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT u.id, u.email, u.phone_number, u.full_name, u.is_verified, u.date_joined,
		       (SELECT COUNT(*) FROM rides r WHERE r.user_id = u.id)
		FROM users u WHERE u.id = $1`, string(id)).
		Scan(&u.ID, &u.Email, &u.PhoneNumber, &u.FullName, &u.IsVerified, &u.DateJoined, &u.TotalRides)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", "Profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdateUser overwrites the non-nil fields.
func (s *Store) UpdateUser(ctx context.Context, id types.ID, fullName, phone *string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET full_name = COALESCE($2, full_name), phone_number = COALESCE($3, phone_number)
		WHERE id = $1`, string(id), fullName, phone)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user", "Profile not found")
	}
	return nil
}

const locationColumns = `id, user_id, name, address, latitude, longitude, type, is_favorite, created_at, updated_at`

func scanLocation(row pgx.Row) (*SavedLocation, error) {
	var l SavedLocation
	if err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Address, &l.Latitude, &l.Longitude,
		&l.Type, &l.IsFavorite, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLocations returns favorites first, then by name.
func (s *Store) ListLocations(ctx context.Context, userID types.ID) ([]SavedLocation, error) {
	rows, err := s.db.Query(ctx, `SELECT `+locationColumns+` FROM saved_locations
		WHERE user_id = $1 ORDER BY is_favorite DESC, name, id`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	out := []SavedLocation{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *Store) GetLocation(ctx context.Context, userID, id types.ID) (*SavedLocation, error) {
	row := s.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM saved_locations
		WHERE id = $1 AND user_id = $2`, string(id), string(userID))
	l, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("location", "Saved location not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return l, nil
}

// SaveLocation inserts or updates l. A favorite clears the flag on the
// owner's other locations of the same type first.
func (s *Store) SaveLocation(ctx context.Context, l *SavedLocation, create bool) error {
	return infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockOwner(ctx, tx, l.UserID); err != nil {
			return err
		}
		if l.IsFavorite {
			if _, err := tx.Exec(ctx, `
				UPDATE saved_locations SET is_favorite = FALSE, updated_at = $4
				WHERE user_id = $1 AND type = $2 AND is_favorite AND id <> $3`,
				string(l.UserID), string(l.Type), string(l.ID), l.UpdatedAt); err != nil {
				return fmt.Errorf("clear favorites: %w", err)
			}
		}
		if create {
			_, err := tx.Exec(ctx, `
				INSERT INTO saved_locations (`+locationColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				string(l.ID), string(l.UserID), l.Name, l.Address, l.Latitude, l.Longitude,
				string(l.Type), l.IsFavorite, l.CreatedAt, l.UpdatedAt)
			if conflict := flagConflict(err); conflict != nil {
				return conflict
			}
			if err != nil {
				return fmt.Errorf("insert location: %w", err)
			}
			return nil
		}
		tag, err := tx.Exec(ctx, `
			UPDATE saved_locations
			SET name = $3, address = $4, latitude = $5, longitude = $6, type = $7,
			    is_favorite = $8, updated_at = $9
			WHERE id = $1 AND user_id = $2`,
			string(l.ID), string(l.UserID), l.Name, l.Address, l.Latitude, l.Longitude,
			string(l.Type), l.IsFavorite, l.UpdatedAt)
		if conflict := flagConflict(err); conflict != nil {
			return conflict
		}
		if err != nil {
			return fmt.Errorf("update location: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("location", "Saved location not found")
		}
		return nil
	})
}

func (s *Store) DeleteLocation(ctx context.Context, userID, id types.ID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM saved_locations WHERE id = $1 AND user_id = $2`, string(id), string(userID))
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("location", "Saved location not found")
	}
	return nil
}

func (s *Store) HasFavoriteHome(ctx context.Context, userID types.ID) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM saved_locations WHERE user_id = $1 AND type = 'home' AND is_favorite)`,
		string(userID)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("favorite home: %w", err)
	}
	return ok, nil
}

const paymentColumns = `id, user_id, type, is_default, card_last_four, card_brand, card_expiry_month,
	card_expiry_year, wallet_provider, wallet_number, created_at, updated_at`

func scanPaymentMethod(row pgx.Row) (*PaymentMethod, error) {
	var p PaymentMethod
	if err := row.Scan(&p.ID, &p.UserID, &p.Type, &p.IsDefault, &p.CardLastFour, &p.CardBrand,
		&p.CardExpiryMonth, &p.CardExpiryYear, &p.WalletProvider, &p.WalletNumber,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPaymentMethods returns the default first, then oldest first.
func (s *Store) ListPaymentMethods(ctx context.Context, userID types.ID) ([]PaymentMethod, error) {
	rows, err := s.db.Query(ctx, `SELECT `+paymentColumns+` FROM payment_methods
		WHERE user_id = $1 ORDER BY is_default DESC, created_at, id`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	out := []PaymentMethod{}
	for rows.Next() {
		p, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) GetPaymentMethod(ctx context.Context, userID, id types.ID) (*PaymentMethod, error) {
	row := s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_methods
		WHERE id = $1 AND user_id = $2`, string(id), string(userID))
	p, err := scanPaymentMethod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment_method", "Payment method not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get payment method: %w", err)
	}
	return p, nil
}

// DefaultPaymentMethod returns nil when the user has no default.
func (s *Store) DefaultPaymentMethod(ctx context.Context, userID types.ID) (*types.ID, error) {
	var id types.ID
	err := s.db.QueryRow(ctx, `SELECT id FROM payment_methods WHERE user_id = $1 AND is_default`,
		string(userID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("default payment method: %w", err)
	}
	return &id, nil
}

func (s *Store) CreatePaymentMethod(ctx context.Context, p *PaymentMethod) error {
	return infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockOwner(ctx, tx, p.UserID); err != nil {
			return err
		}
		if p.IsDefault {
			if err := clearDefaults(ctx, tx, p.UserID, p.ID, p.UpdatedAt); err != nil {
				return err
			}
		}
		return insertPaymentMethod(ctx, tx, p)
	})
}

func insertPaymentMethod(ctx context.Context, tx infra.DBTX, p *PaymentMethod) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payment_methods (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(p.ID), string(p.UserID), string(p.Type), p.IsDefault, p.CardLastFour, p.CardBrand,
		p.CardExpiryMonth, p.CardExpiryYear, p.WalletProvider, p.WalletNumber, p.CreatedAt, p.UpdatedAt)
	if name, ok := constraintOf(err); ok {
		switch name {
		case "payment_methods_unique_card":
			return apperr.InvalidInput("card_last_four", "This card is already saved")
		case "payment_methods_unique_wallet":
			return apperr.InvalidInput("wallet_number", "This wallet is already saved")
		}
	}
	if conflict := flagConflict(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}

func clearDefaults(ctx context.Context, tx infra.DBTX, userID, keep types.ID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE payment_methods SET is_default = FALSE, updated_at = $3
		WHERE user_id = $1 AND is_default AND id <> $2`, string(userID), string(keep), now)
	if err != nil {
		return fmt.Errorf("clear defaults: %w", err)
	}
	return nil
}

func (s *Store) SetDefaultPaymentMethod(ctx context.Context, userID, id types.ID, now time.Time) error {
	return infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockOwner(ctx, tx, userID); err != nil {
			return err
		}
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM payment_methods WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			string(id), string(userID)).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("payment_method", "Payment method not found")
		}
		if err != nil {
			return fmt.Errorf("lock payment method: %w", err)
		}
		if err := clearDefaults(ctx, tx, userID, id, now); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE payment_methods SET is_default = TRUE, updated_at = $2 WHERE id = $1`,
			string(id), now)
		if conflict := flagConflict(err); conflict != nil {
			return conflict
		}
		if err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		return nil
	})
}

// DeletePaymentMethod removes the method. Removing the default promotes the
// oldest remaining one.
func (s *Store) DeletePaymentMethod(ctx context.Context, userID, id types.ID, now time.Time) error {
	return infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockOwner(ctx, tx, userID); err != nil {
			return err
		}
		var wasDefault bool
		err := tx.QueryRow(ctx, `DELETE FROM payment_methods WHERE id = $1 AND user_id = $2 RETURNING is_default`,
			string(id), string(userID)).Scan(&wasDefault)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("payment_method", "Payment method not found")
		}
		if err != nil {
			return fmt.Errorf("delete payment method: %w", err)
		}
		if !wasDefault {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE payment_methods SET is_default = TRUE, updated_at = $2
			WHERE id = (SELECT id FROM payment_methods WHERE user_id = $1 ORDER BY created_at, id LIMIT 1)`,
			string(userID), now)
		if err != nil {
			return fmt.Errorf("promote default: %w", err)
		}
		return nil
	})
}
