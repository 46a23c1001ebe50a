package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// scanRunRows scans run rows into a slice, handling the nullable error column.
func scanRunRows(rows *sql.Rows) ([]RunRecord, error) {
	runs := make([]RunRecord, 0)

	for rows.Next() {
		var run RunRecord
		var errorMsg sql.NullString

		err := rows.Scan(
			&run.ID, &run.RunID, &run.Command, &run.Namespace, &run.Mode, &run.DryRun,
			&run.Succeeded, &run.Failed, &run.Skipped, &errorMsg, &run.StartedAt, &run.EndedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if errorMsg.Valid {
			run.Error = errorMsg.String
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

// scanOutcomeRows scans outcome rows and decodes the JSON tag lists.
func scanOutcomeRows(rows *sql.Rows) ([]OutcomeRecord, error) {
	outcomes := make([]OutcomeRecord, 0)

	for rows.Next() {
		var o OutcomeRecord
		var tagsJSON, pushedJSON, failedJSON string
		var digest, detail, errorMsg sql.NullString
		var durationMS int64

		err := rows.Scan(
			&o.Namespace, &o.Variant, &o.State, &o.Status,
			&tagsJSON, &pushedJSON, &failedJSON, &digest, &detail, &errorMsg, &durationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}

		if digest.Valid {
			o.Digest = digest.String
		}
		if detail.Valid {
			o.Detail = detail.String
		}
		if errorMsg.Valid {
			o.Error = errorMsg.String
		}
		o.Duration = time.Duration(durationMS) * time.Millisecond

		if err := json.Unmarshal([]byte(tagsJSON), &o.Tags); err != nil {
			return nil, fmt.Errorf("failed to deserialize tags: %w", err)
		}
		if err := json.Unmarshal([]byte(pushedJSON), &o.Pushed); err != nil {
			return nil, fmt.Errorf("failed to deserialize pushed tags: %w", err)
		}
		if err := json.Unmarshal([]byte(failedJSON), &o.FailedPushes); err != nil {
			return nil, fmt.Errorf("failed to deserialize failed pushes: %w", err)
		}
		if len(o.Pushed) == 0 {
			o.Pushed = nil
		}
		if len(o.FailedPushes) == 0 {
			o.FailedPushes = nil
		}

		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome rows: %w", err)
	}

	return outcomes, nil
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to serialize tags: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// appendLimitClause appends a SQL LIMIT clause to the query if limit > 0
func appendLimitClause(query string, limit int) string {
	if limit > 0 {
		return query + fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}
