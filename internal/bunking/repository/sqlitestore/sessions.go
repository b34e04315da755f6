package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/camp/kindred/internal/bunking/model"
)

// SessionStore exposes DB's session forest as repository.SessionRepository.
// It is a separate type because PersonRepository and SessionRepository
// both declare FindByCMID with different return types.
type SessionStore struct {
	db *DB
}

// Sessions returns the repository.SessionRepository view of this DB.
func (d *DB) Sessions() *SessionStore {
	return &SessionStore{db: d}
}

// FindByCMID implements repository.SessionRepository.
func (ss *SessionStore) FindByCMID(ctx context.Context, sessionCMID int) (model.Session, bool, error) {
	row := ss.db.db.QueryRowContext(ctx,
		`SELECT cm_id, year, name, type, parent_cm_id FROM session WHERE cm_id = ?`, sessionCMID)

	var sess model.Session
	var sessType sql.NullString
	var parentCMID sql.NullInt64
	if err := row.Scan(&sess.CMID, &sess.Year, &sess.Name, &sessType, &parentCMID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, errors.Wrap(err, "find session by cm_id")
	}

	sess.Type = model.SessionType(sessType.String)
	if parentCMID.Valid {
		p := int(parentCMID.Int64)
		sess.ParentCMID = &p
	}

	return sess, true, nil
}

// GetValidBunkingSessionIDs implements repository.SessionRepository: the
// session itself, its parent, and all siblings/children sharing that
// parent (the session forest's embedded/AG structure).
func (ss *SessionStore) GetValidBunkingSessionIDs(ctx context.Context, sessionCMID int) ([]int, error) {
	sess, ok, err := ss.FindByCMID(ctx, sessionCMID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []int{sessionCMID}, nil
	}

	ids := map[int]struct{}{sessionCMID: {}}

	if sess.ParentCMID != nil {
		ids[*sess.ParentCMID] = struct{}{}

		rows, err := ss.db.db.QueryContext(ctx, `SELECT cm_id FROM session WHERE parent_cm_id = ?`, *sess.ParentCMID)
		if err != nil {
			return nil, errors.Wrap(err, "query sibling sessions")
		}
		defer rows.Close()
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				return nil, errors.Wrap(err, "scan sibling session id")
			}
			ids[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	rows, err := ss.db.db.QueryContext(ctx, `SELECT cm_id FROM session WHERE parent_cm_id = ?`, sessionCMID)
	if err != nil {
		return nil, errors.Wrap(err, "query child sessions")
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan child session id")
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]int, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out, nil
}
