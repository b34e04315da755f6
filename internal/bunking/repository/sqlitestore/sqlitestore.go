// Package sqlitestore is a modernc.org/sqlite-backed implementation of
// the resolution core's repository interfaces, for local development and
// single-process deployments.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"

	"github.com/camp/kindred/internal/bunking/model"
)

// DB wraps a *sql.DB opened against a roster database with the
// person/attendee/session tables the resolution core reads.
type DB struct {
	db *sql.DB
}

// Open opens a SQLite database at dsn and applies the pragmas the
// single-connection, read-mostly access pattern needs.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open db with dsn: %s", dsn)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, errors.Wrapf(err, "set pragma: %s", pragma)
		}
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return &DB{db: sqlDB}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func scanPerson(row interface{ Scan(...any) error }) (model.Person, error) {
	var p model.Person
	var preferredName, school, city, state sql.NullString
	var grade sql.NullInt64
	var birthDate sql.NullString
	var sessionCMID sql.NullInt64
	var parentNamesJSON sql.NullString

	if err := row.Scan(
		&p.CMID, &p.FirstName, &p.LastName, &preferredName,
		&grade, &birthDate, &school, &city, &state, &sessionCMID, &parentNamesJSON,
	); err != nil {
		return model.Person{}, err
	}

	p.PreferredName = preferredName.String
	p.School = school.String
	p.City = city.String
	p.State = state.String
	if grade.Valid {
		g := int(grade.Int64)
		p.Grade = &g
	}
	if birthDate.Valid {
		p.BirthDate = &birthDate.String
	}
	if sessionCMID.Valid {
		s := int(sessionCMID.Int64)
		p.SessionCMID = &s
	}
	if parentNamesJSON.Valid && parentNamesJSON.String != "" {
		var names []model.ParentName
		if err := json.Unmarshal([]byte(parentNamesJSON.String), &names); err == nil {
			p.ParentNames = names
		}
	}

	return p, nil
}

const personColumns = `cm_id, first_name, last_name, preferred_name,
	grade, birth_date, school, city, state, session_cm_id, parent_names_json`

// FindByCMID implements repository.PersonRepository.
func (d *DB) FindByCMID(ctx context.Context, cmID int) (model.Person, bool, error) {
	row := d.db.QueryRowContext(ctx, "SELECT "+personColumns+" FROM person WHERE cm_id = ?", cmID)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Person{}, false, nil
	}
	if err != nil {
		return model.Person{}, false, errors.Wrap(err, "find person by cm_id")
	}
	return p, true, nil
}

// BulkFindByCMIDs implements repository.PersonRepository, chunking the
// IN-list to bound query length on large batches.
func (d *DB) BulkFindByCMIDs(ctx context.Context, ids []int) (map[int]model.Person, error) {
	out := make(map[int]model.Person, len(ids))
	const chunkSize = 25

	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := make([]byte, 0, len(chunk)*2)
		args := make([]any, 0, len(chunk))
		for i, id := range chunk {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, id)
		}

		query := `SELECT ` + personColumns + ` FROM person WHERE cm_id IN (` + string(placeholders) + `)`
		persons, err := d.queryPersons(ctx, query, args...)
		if err != nil {
			return nil, errors.Wrap(err, "bulk find persons by cm_id")
		}
		for _, p := range persons {
			out[p.CMID] = p
		}
	}

	return out, nil
}

func (d *DB) queryPersons(ctx context.Context, query string, args ...any) ([]model.Person, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query persons")
	}
	defer rows.Close()

	var out []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan person")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindByName implements repository.PersonRepository.
func (d *DB) FindByName(ctx context.Context, firstName, lastName string, year int) ([]model.Person, error) {
	query := `SELECT ` + personColumns + `
		FROM person p
		JOIN attendee a ON a.person_cm_id = p.cm_id AND a.year = ?
		WHERE LOWER(p.first_name) = LOWER(?) AND LOWER(p.last_name) = LOWER(?)`
	return d.queryPersons(ctx, query, year, firstName, lastName)
}

// FindByFirstName implements repository.PersonRepository.
func (d *DB) FindByFirstName(ctx context.Context, firstName string, year int) ([]model.Person, error) {
	query := `SELECT ` + personColumns + `
		FROM person p
		JOIN attendee a ON a.person_cm_id = p.cm_id AND a.year = ?
		WHERE LOWER(p.first_name) = LOWER(?)`
	return d.queryPersons(ctx, query, year, firstName)
}

// FindByNormalizedName implements repository.PersonRepository. The
// caller passes an already-normalized string; matching happens against a
// normalized_name column maintained by the roster sync job.
func (d *DB) FindByNormalizedName(ctx context.Context, normalized string, year int) ([]model.Person, error) {
	query := `SELECT ` + personColumns + `
		FROM person p
		JOIN attendee a ON a.person_cm_id = p.cm_id AND a.year = ?
		WHERE p.normalized_name = ?`
	return d.queryPersons(ctx, query, year, normalized)
}

// FindByFirstAndParentSurname implements repository.PersonRepository.
func (d *DB) FindByFirstAndParentSurname(ctx context.Context, firstName, parentSurname string, year int) ([]model.Person, error) {
	query := `SELECT ` + personColumns + `
		FROM person p
		JOIN attendee a ON a.person_cm_id = p.cm_id AND a.year = ?
		WHERE LOWER(p.first_name) = LOWER(?)
		  AND p.parent_names_json LIKE '%' || ? || '%'`
	return d.queryPersons(ctx, query, year, firstName, parentSurname)
}

// GetAllForPhoneticMatching implements repository.PersonRepository.
func (d *DB) GetAllForPhoneticMatching(ctx context.Context, year int) ([]model.Person, error) {
	query := `SELECT ` + personColumns + `
		FROM person p
		JOIN attendee a ON a.person_cm_id = p.cm_id AND a.year = ?`
	return d.queryPersons(ctx, query, year)
}

const attendeeColumns = `person_cm_id, year, session_cm_id, school, grade, city, state, family_cm_id, current_bunk_id`

func scanAttendee(row interface{ Scan(...any) error }) (model.Attendee, error) {
	var a model.Attendee
	var school, city, state sql.NullString
	var grade, familyCMID, currentBunkID sql.NullInt64
	if err := row.Scan(&a.PersonCMID, &a.Year, &a.SessionCMID, &school, &grade, &city, &state, &familyCMID, &currentBunkID); err != nil {
		return model.Attendee{}, err
	}
	a.School = school.String
	a.City = city.String
	a.State = state.String
	if grade.Valid {
		g := int(grade.Int64)
		a.Grade = &g
	}
	if familyCMID.Valid {
		f := int(familyCMID.Int64)
		a.FamilyCMID = &f
	}
	if currentBunkID.Valid {
		b := int(currentBunkID.Int64)
		a.CurrentBunkID = &b
	}
	return a, nil
}

// GetByPersonAndYear implements repository.AttendeeRepository.
func (d *DB) GetByPersonAndYear(ctx context.Context, personCMID, year int) (model.Attendee, bool, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+attendeeColumns+`
		FROM attendee WHERE person_cm_id = ? AND year = ?`, personCMID, year)

	a, err := scanAttendee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attendee{}, false, nil
	}
	if err != nil {
		return model.Attendee{}, false, errors.Wrap(err, "get attendee by person and year")
	}
	return a, true, nil
}

// ListByYear implements repository.AttendeeRepository.
func (d *DB) ListByYear(ctx context.Context, year int) ([]model.Attendee, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+attendeeColumns+` FROM attendee WHERE year = ?`, year)
	if err != nil {
		return nil, errors.Wrap(err, "list attendees by year")
	}
	defer rows.Close()

	var out []model.Attendee
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan attendee")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListBunkAssignmentsBefore implements repository.AttendeeRepository,
// chunking the IN-list to bound query length on large batches.
func (d *DB) ListBunkAssignmentsBefore(ctx context.Context, ids []int, beforeYear int) ([]model.BunkAssignment, error) {
	var out []model.BunkAssignment
	const chunkSize = 25

	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := make([]byte, 0, len(chunk)*2)
		args := make([]any, 0, len(chunk)+1)
		args = append(args, beforeYear)
		for i, id := range chunk {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, id)
		}

		query := `SELECT person_cm_id, year, bunk_id FROM bunk_assignment
			WHERE year < ? AND person_cm_id IN (` + string(placeholders) + `)`
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, errors.Wrap(err, "list bunk assignments before year")
		}

		for rows.Next() {
			var a model.BunkAssignment
			if err := rows.Scan(&a.PersonCMID, &a.Year, &a.BunkID); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "scan bunk assignment row")
			}
			out = append(out, a)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return out, nil
}

// FindPriorYearBunkmates implements repository.AttendeeRepository.
func (d *DB) FindPriorYearBunkmates(ctx context.Context, personCMID, _ int, year int) (model.PriorBunkmates, bool, error) {
	priorYear := year - 1

	var bunkID int
	err := d.db.QueryRowContext(ctx,
		`SELECT bunk_id FROM bunk_assignment WHERE person_cm_id = ? AND year = ?`,
		personCMID, priorYear).Scan(&bunkID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PriorBunkmates{}, false, nil
	}
	if err != nil {
		return model.PriorBunkmates{}, false, errors.Wrap(err, "find prior year bunk")
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT person_cm_id FROM bunk_assignment WHERE year = ? AND bunk_id = ? AND person_cm_id != ?`,
		priorYear, bunkID, personCMID)
	if err != nil {
		return model.PriorBunkmates{}, false, errors.Wrap(err, "find prior year bunkmates")
	}
	defer rows.Close()

	var cmids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return model.PriorBunkmates{}, false, errors.Wrap(err, "scan prior bunkmate row")
		}
		cmids = append(cmids, id)
	}
	if err := rows.Err(); err != nil {
		return model.PriorBunkmates{}, false, err
	}

	return model.PriorBunkmates{CMIDs: cmids, PriorBunkID: bunkID}, true, nil
}

// BulkGetSessionsForPersons implements repository.AttendeeRepository,
// chunking the IN-list to bound query length on large batches.
func (d *DB) BulkGetSessionsForPersons(ctx context.Context, ids []int, year int) (map[int]int, error) {
	out := make(map[int]int, len(ids))
	const chunkSize = 25

	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := make([]byte, 0, len(chunk)*2)
		args := make([]any, 0, len(chunk)+1)
		args = append(args, year)
		for i, id := range chunk {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, id)
		}

		query := `SELECT person_cm_id, session_cm_id FROM attendee WHERE year = ? AND person_cm_id IN (` + string(placeholders) + `)`
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, errors.Wrap(err, "bulk get sessions for persons")
		}

		for rows.Next() {
			var personCMID, sessionCMID int
			if err := rows.Scan(&personCMID, &sessionCMID); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "scan session row")
			}
			out[personCMID] = sessionCMID
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return out, nil
}
