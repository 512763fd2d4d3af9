package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brandon/mail-sync/pkg/types"
)

// SearchOptions contains search parameters
type SearchOptions struct {
	AccountID       *string
	Folder          *string
	Sender          *string
	Recipient       *string
	Subject         *string
	Body            *string
	DateFrom        *time.Time
	DateTo          *time.Time
	IncludeArchived bool
	Limit           int
}

const maxSearchLimit = 1000

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

// ftsPhrase quotes free text as a single FTS5 phrase.
func ftsPhrase(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

// Search performs a structured search on stored emails
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]types.EmailSummary, error) {
	var conditions []string
	var args []interface{}

	if opts.AccountID != nil {
		conditions = append(conditions, "e.account_id = ?")
		args = append(args, *opts.AccountID)
	}

	if opts.Folder != nil {
		conditions = append(conditions, "e.folder = ?")
		args = append(args, *opts.Folder)
	}

	if !opts.IncludeArchived {
		conditions = append(conditions, "e.is_archived = 0")
	}

	if opts.Sender != nil {
		conditions = append(conditions, "(e.from_email LIKE ? OR e.from_name LIKE ?)")
		searchTerm := "%" + *opts.Sender + "%"
		args = append(args, searchTerm, searchTerm)
	}

	if opts.Recipient != nil {
		conditions = append(conditions, "(e.to_addrs LIKE ? OR e.cc_addrs LIKE ?)")
		searchTerm := "%" + *opts.Recipient + "%"
		args = append(args, searchTerm, searchTerm)
	}

	if opts.Subject != nil {
		conditions = append(conditions, "e.subject LIKE ?")
		args = append(args, "%"+*opts.Subject+"%")
	}

	if opts.DateFrom != nil {
		conditions = append(conditions, "e.received_at >= ?")
		args = append(args, opts.DateFrom.Unix())
	}

	if opts.DateTo != nil {
		conditions = append(conditions, "e.received_at <= ?")
		args = append(args, opts.DateTo.Unix())
	}

	if opts.Body != nil {
		conditions = append(conditions, "e.seq IN (SELECT rowid FROM emails_fts WHERE emails_fts MATCH ?)")
		args = append(args, ftsPhrase(*opts.Body))
	}

	return s.querySummaries(ctx, conditions, args, clampLimit(opts.Limit))
}

// SearchFTS performs a free-text search across subject, sender and body
func (s *Store) SearchFTS(ctx context.Context, query string, accountID *string, limit int) ([]types.EmailSummary, error) {
	conditions := []string{"e.seq IN (SELECT rowid FROM emails_fts WHERE emails_fts MATCH ?)"}
	args := []interface{}{ftsPhrase(query)}

	if accountID != nil {
		conditions = append(conditions, "e.account_id = ?")
		args = append(args, *accountID)
	}

	return s.querySummaries(ctx, conditions, args, clampLimit(limit))
}

func (s *Store) querySummaries(ctx context.Context, conditions []string, args []interface{}, limit int) ([]types.EmailSummary, error) {
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT e.id, e.account_id, e.folder, COALESCE(e.subject, ''), COALESCE(e.from_name, ''),
			COALESCE(e.from_email, ''), e.received_at, COALESCE(e.snippet, ''), e.is_archived
		FROM emails e
		%s
		ORDER BY e.received_at DESC
		LIMIT ?
	`, whereClause)
	args = append(args, limit)

	rows, err := s.cache.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	defer rows.Close()

	var results []types.EmailSummary
	for rows.Next() {
		var summary types.EmailSummary
		err := rows.Scan(
			&summary.ID,
			&summary.AccountID,
			&summary.Folder,
			&summary.Subject,
			&summary.FromName,
			&summary.FromEmail,
			&summary.ReceivedAt,
			&summary.Snippet,
			&summary.IsArchived,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		results = append(results, summary)
	}

	return results, rows.Err()
}
