package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var submissionColumns = []string{
	"id",
	"tracking_id",
	"session_id",
	"document_type",
	"language",
	"confidence",
	"turns",
	"field_values",
	"authoritative",
	"archive_key",
	"submitted_at",
	"case_ref",
	"reconciled_at",
}

// Create inserts a new submission.
func (r *PGRepo) Create(ctx context.Context, sub Submission) error {
	values := sub.FieldValues
	if values == nil {
		values = map[string]string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode field values: %w", err)
	}

	query, args, err := psql.Insert("submissions").
		Columns(submissionColumns[:11]...).
		Values(
			sub.ID,
			sub.TrackingID,
			sub.SessionID,
			sub.DocumentType,
			sub.Language,
			sub.Confidence,
			sub.Turns,
			raw,
			sub.Authoritative,
			sub.ArchiveKey,
			sub.SubmittedAt,
		).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

// GetByTrackingID fetches a submission by tracking ID.
func (r *PGRepo) GetByTrackingID(ctx context.Context, trackingID string) (Submission, error) {
	return r.getOne(ctx, psql.Select(submissionColumns...).
		From("submissions").
		Where(sq.Eq{"tracking_id": trackingID}).
		Limit(1))
}

// GetBySessionID fetches the submission created for a session.
func (r *PGRepo) GetBySessionID(ctx context.Context, sessionID string) (Submission, error) {
	return r.getOne(ctx, psql.Select(submissionColumns...).
		From("submissions").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("submitted_at DESC").
		Limit(1))
}

// MarkReconciled stores the case store reference for a provisional submission.
func (r *PGRepo) MarkReconciled(ctx context.Context, trackingID, caseRef string, at time.Time) error {
	query, args, err := psql.Update("submissions").
		Set("case_ref", caseRef).
		Set("reconciled_at", at).
		Where(sq.Eq{"tracking_id": trackingID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) getOne(ctx context.Context, b sq.SelectBuilder) (Submission, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return Submission{}, err
	}

	var sub Submission
	var raw []byte
	var archiveKey sql.NullString
	var reconciledAt sql.NullTime
	err = r.DB.QueryRowContext(ctx, query, args...).Scan(
		&sub.ID,
		&sub.TrackingID,
		&sub.SessionID,
		&sub.DocumentType,
		&sub.Language,
		&sub.Confidence,
		&sub.Turns,
		&raw,
		&sub.Authoritative,
		&archiveKey,
		&sub.SubmittedAt,
		&sub.CaseRef,
		&reconciledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, err
	}
	if archiveKey.Valid {
		sub.ArchiveKey = archiveKey.String
	}
	if reconciledAt.Valid {
		at := reconciledAt.Time
		sub.ReconciledAt = &at
	}
	sub.FieldValues = map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sub.FieldValues); err != nil {
			return Submission{}, fmt.Errorf("decode field values: %w", err)
		}
	}
	return sub, nil
}

var _ Repo = (*PGRepo)(nil)
