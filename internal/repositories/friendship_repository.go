package repositories

import (
	"context"
	"errors"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbsqlx"
	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// FriendshipRepository stores the relationship row of each user pair. At most
// one row exists per unordered pair.
type FriendshipRepository interface {
	// CreateRequest inserts a pending row. A previously rejected row for the
	// pair is discarded first. Any other existing row yields ErrConflict.
	CreateRequest(ctx context.Context, requesterID, recipientID int64) (models.Friendship, error)
	GetByID(ctx context.Context, id int64) (models.Friendship, error)
	GetBetween(ctx context.Context, userA, userB int64) (models.Friendship, error)
	// UpdateStatus moves the row from one status to another. ErrConflict is
	// returned when the row is no longer in the from status.
	UpdateStatus(ctx context.Context, id int64, from, to models.FriendshipStatus) (models.Friendship, error)
	DeleteBetween(ctx context.Context, userA, userB int64) (bool, error)
	// Block replaces whatever relationship the pair had with a blocked row
	// owned by blockerID.
	Block(ctx context.Context, blockerID, targetID int64) (models.Friendship, error)
	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
	ListPendingReceived(ctx context.Context, userID int64) ([]models.Friendship, error)
	ListPendingSent(ctx context.Context, userID int64) ([]models.Friendship, error)
}

const friendshipColumns = `id, requester_id, recipient_id, status, created_at, updated_at`

const pairPredicate = `LEAST(requester_id, recipient_id) = LEAST($1::BIGINT, $2::BIGINT)
    AND GREATEST(requester_id, recipient_id) = GREATEST($1::BIGINT, $2::BIGINT)`

// FriendshipRepo is a sqlx implementation of FriendshipRepository.
type FriendshipRepo struct {
	db *sqlx.DB
}

// NewFriendshipRepo constructs a FriendshipRepo.
func NewFriendshipRepo(db *sqlx.DB) *FriendshipRepo {
	return &FriendshipRepo{db: db}
}

func (r *FriendshipRepo) CreateRequest(ctx context.Context, requesterID, recipientID int64) (models.Friendship, error) {
	var f models.Friendship
	err := crdbsqlx.ExecuteTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM friendships WHERE `+pairPredicate+` AND status=$3`,
			requesterID, recipientID, models.FriendshipRejected); err != nil {
			return err
		}
		return tx.GetContext(ctx, &f, `INSERT INTO friendships (requester_id, recipient_id, status)
            VALUES ($1, $2, $3) RETURNING `+friendshipColumns, requesterID, recipientID, models.FriendshipPending)
	})
	if isUniqueViolation(err) {
		return models.Friendship{}, ErrConflict
	}
	if err != nil {
		return models.Friendship{}, err
	}
	return f, nil
}

func (r *FriendshipRepo) GetByID(ctx context.Context, id int64) (models.Friendship, error) {
	var f models.Friendship
	if err := r.db.GetContext(ctx, &f, `SELECT `+friendshipColumns+` FROM friendships WHERE id=$1`, id); err != nil {
		return models.Friendship{}, notFound(err)
	}
	return f, nil
}

func (r *FriendshipRepo) GetBetween(ctx context.Context, userA, userB int64) (models.Friendship, error) {
	var f models.Friendship
	if err := r.db.GetContext(ctx, &f, `SELECT `+friendshipColumns+` FROM friendships WHERE `+pairPredicate, userA, userB); err != nil {
		return models.Friendship{}, notFound(err)
	}
	return f, nil
}

func (r *FriendshipRepo) UpdateStatus(ctx context.Context, id int64, from, to models.FriendshipStatus) (models.Friendship, error) {
	var f models.Friendship
	err := r.db.GetContext(ctx, &f, `UPDATE friendships SET status=$3, updated_at=NOW()
        WHERE id=$1 AND status=$2 RETURNING `+friendshipColumns, id, from, to)
	if err == nil {
		return f, nil
	}
	if err = notFound(err); !errors.Is(err, ErrNotFound) {
		return models.Friendship{}, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return models.Friendship{}, getErr
	}
	return models.Friendship{}, ErrConflict
}

func (r *FriendshipRepo) DeleteBetween(ctx context.Context, userA, userB int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM friendships WHERE `+pairPredicate, userA, userB)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *FriendshipRepo) Block(ctx context.Context, blockerID, targetID int64) (models.Friendship, error) {
	var f models.Friendship
	err := crdbsqlx.ExecuteTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM friendships WHERE `+pairPredicate, blockerID, targetID); err != nil {
			return err
		}
		return tx.GetContext(ctx, &f, `INSERT INTO friendships (requester_id, recipient_id, status)
            VALUES ($1, $2, $3) RETURNING `+friendshipColumns, blockerID, targetID, models.FriendshipBlocked)
	})
	if isUniqueViolation(err) {
		return models.Friendship{}, ErrConflict
	}
	if err != nil {
		return models.Friendship{}, err
	}
	return f, nil
}

// ListFriendIDs returns the ids of users with an accepted relationship.
func (r *FriendshipRepo) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT CASE WHEN requester_id=$1 THEN recipient_id ELSE requester_id END AS friend_id
        FROM friendships
        WHERE (requester_id=$1 OR recipient_id=$1) AND status=$2
        ORDER BY friend_id`, userID, models.FriendshipAccepted)
	return ids, err
}

func (r *FriendshipRepo) ListPendingReceived(ctx context.Context, userID int64) ([]models.Friendship, error) {
	out := []models.Friendship{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+friendshipColumns+` FROM friendships
        WHERE recipient_id=$1 AND status=$2 ORDER BY created_at DESC, id DESC`, userID, models.FriendshipPending)
	return out, err
}

func (r *FriendshipRepo) ListPendingSent(ctx context.Context, userID int64) ([]models.Friendship, error) {
	out := []models.Friendship{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+friendshipColumns+` FROM friendships
        WHERE requester_id=$1 AND status=$2 ORDER BY created_at DESC, id DESC`, userID, models.FriendshipPending)
	return out, err
}
