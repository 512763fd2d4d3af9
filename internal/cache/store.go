package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/pkg/types"
)

// Store implements the persistence contract on top of the SQLite cache
type Store struct {
	cache  *Cache
	logger *logrus.Logger
}

// NewStore creates a new store instance
func NewStore(cache *Cache, logger *logrus.Logger) *Store {
	return &Store{
		cache:  cache,
		logger: logger,
	}
}

const emailColumns = `id, account_id, COALESCE(thread_id, ''), COALESCE(message_id, ''), COALESCE(subject, ''),
	COALESCE(snippet, ''), COALESCE(from_name, ''), COALESCE(from_email, ''), COALESCE(to_addrs, ''),
	COALESCE(cc_addrs, ''), COALESCE(bcc_addrs, ''), COALESCE(body_text, ''), COALESCE(body_html, ''),
	label_ids, is_read, is_starred, is_archived, received_at, folder`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (*types.Email, error) {
	var email types.Email
	var labelIDs string
	err := row.Scan(
		&email.ID,
		&email.AccountID,
		&email.ThreadID,
		&email.MessageID,
		&email.Subject,
		&email.Snippet,
		&email.FromName,
		&email.FromEmail,
		&email.To,
		&email.Cc,
		&email.Bcc,
		&email.BodyText,
		&email.BodyHTML,
		&labelIDs,
		&email.IsRead,
		&email.IsStarred,
		&email.IsArchived,
		&email.ReceivedAt,
		&email.Folder,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(labelIDs), &email.LabelIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal label ids: %w", err)
	}
	return &email, nil
}

// UpsertAccount upserts an account row
func (s *Store) UpsertAccount(ctx context.Context, acc *types.Account) error {
	query := `
		INSERT INTO accounts (id, provider, email, display_name, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.cache.DB().ExecContext(ctx, query, acc.ID, string(acc.Kind), acc.Email, acc.DisplayName); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// AccountProvider returns the stored provider kind of an account, or "" if unknown.
// The kind is fixed at creation and never rewritten by UpsertAccount.
func (s *Store) AccountProvider(ctx context.Context, accountID string) (types.ProviderKind, error) {
	var kind string
	err := s.cache.DB().QueryRowContext(ctx, "SELECT provider FROM accounts WHERE id = ?", accountID).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get account provider: %w", err)
	}
	return types.ProviderKind(kind), nil
}

// UpsertEmail inserts or updates an email by id.
// An inbox upsert also clears the archived flag. A sent upsert never moves an inbox email out of the inbox.
func (s *Store) UpsertEmail(ctx context.Context, email *types.Email) error {
	labelIDs := email.LabelIDs
	if labelIDs == nil {
		labelIDs = []string{}
	}
	labelsJSON, err := json.Marshal(labelIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal label ids: %w", err)
	}

	folder := email.Folder
	if folder == "" {
		folder = types.FolderInbox
	}

	query := `
		INSERT INTO emails (id, account_id, thread_id, message_id, subject, snippet, from_name, from_email,
			to_addrs, cc_addrs, bcc_addrs, body_text, body_html, label_ids, is_read, is_starred, is_archived,
			received_at, folder)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thread_id = excluded.thread_id,
			message_id = excluded.message_id,
			subject = excluded.subject,
			snippet = excluded.snippet,
			from_name = excluded.from_name,
			from_email = excluded.from_email,
			to_addrs = excluded.to_addrs,
			cc_addrs = excluded.cc_addrs,
			bcc_addrs = excluded.bcc_addrs,
			body_text = excluded.body_text,
			body_html = excluded.body_html,
			label_ids = excluded.label_ids,
			is_read = excluded.is_read,
			is_starred = excluded.is_starred,
			is_archived = CASE WHEN excluded.folder = 'inbox' THEN 0 ELSE emails.is_archived END,
			received_at = excluded.received_at,
			folder = CASE WHEN emails.folder = 'inbox' AND excluded.folder <> 'inbox' THEN emails.folder ELSE excluded.folder END,
			synced_at = CURRENT_TIMESTAMP
	`
	_, err = s.cache.DB().ExecContext(ctx, query,
		email.ID,
		email.AccountID,
		email.ThreadID,
		email.MessageID,
		email.Subject,
		email.Snippet,
		email.FromName,
		email.FromEmail,
		email.To,
		email.Cc,
		email.Bcc,
		email.BodyText,
		email.BodyHTML,
		string(labelsJSON),
		email.IsRead,
		email.IsStarred,
		email.IsArchived && folder != types.FolderInbox,
		email.ReceivedAt,
		folder,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert email: %w", err)
	}
	return nil
}

// GetEmail retrieves an email by id, or nil if it does not exist
func (s *Store) GetEmail(ctx context.Context, id string) (*types.Email, error) {
	row := s.cache.DB().QueryRowContext(ctx, "SELECT "+emailColumns+" FROM emails WHERE id = ?", id)
	email, err := scanEmail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return email, nil
}

// ListEmails lists the newest emails of an account in a folder
func (s *Store) ListEmails(ctx context.Context, accountID, folder string, includeArchived bool, limit int) ([]*types.Email, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT " + emailColumns + " FROM emails WHERE account_id = ? AND folder = ?"
	if !includeArchived {
		query += " AND is_archived = 0"
	}
	query += " ORDER BY received_at DESC LIMIT ?"

	rows, err := s.cache.DB().QueryContext(ctx, query, accountID, folder, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	var emails []*types.Email
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// DeleteEmail removes an email with its attachments and label edges
func (s *Store) DeleteEmail(ctx context.Context, id string) error {
	if _, err := s.cache.DB().ExecContext(ctx, "DELETE FROM emails WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete email: %w", err)
	}
	return nil
}

// ArchiveEmail marks an email archived
func (s *Store) ArchiveEmail(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "is_archived", true)
}

// UnarchiveEmail clears the archived flag
func (s *Store) UnarchiveEmail(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "is_archived", false)
}

// SetRead updates the read flag
func (s *Store) SetRead(ctx context.Context, id string, read bool) error {
	return s.setFlag(ctx, id, "is_read", read)
}

// SetStarred updates the starred flag
func (s *Store) SetStarred(ctx context.Context, id string, starred bool) error {
	return s.setFlag(ctx, id, "is_starred", starred)
}

// setFlag updates one boolean column; column is never caller-supplied text.
func (s *Store) setFlag(ctx context.Context, id, column string, value bool) error {
	query := fmt.Sprintf("UPDATE emails SET %s = ? WHERE id = ?", column)
	if _, err := s.cache.DB().ExecContext(ctx, query, value, id); err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

// ActiveEmailIDs lists ids of the account's inbox emails that are not archived
func (s *Store) ActiveEmailIDs(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.cache.DB().QueryContext(ctx,
		"SELECT id FROM emails WHERE account_id = ? AND folder = 'inbox' AND is_archived = 0 ORDER BY id",
		accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active emails: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan email id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertAttachment inserts or replaces an attachment by its composite id
func (s *Store) UpsertAttachment(ctx context.Context, att *types.Attachment) error {
	query := `
		INSERT INTO attachments (id, email_id, content_id, filename, mime_type, size, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_id = excluded.content_id,
			filename = excluded.filename,
			mime_type = excluded.mime_type,
			size = excluded.size,
			data = excluded.data
	`
	_, err := s.cache.DB().ExecContext(ctx, query, att.ID, att.EmailID, att.ContentID, att.Filename, att.MimeType, att.Size, att.Data)
	if err != nil {
		return fmt.Errorf("failed to upsert attachment: %w", err)
	}
	return nil
}

// GetAttachments lists the stored attachments of an email
func (s *Store) GetAttachments(ctx context.Context, emailID string) ([]*types.Attachment, error) {
	rows, err := s.cache.DB().QueryContext(ctx,
		"SELECT id, email_id, content_id, COALESCE(filename, ''), mime_type, size, data FROM attachments WHERE email_id = ? ORDER BY id",
		emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var atts []*types.Attachment
	for rows.Next() {
		var att types.Attachment
		if err := rows.Scan(&att.ID, &att.EmailID, &att.ContentID, &att.Filename, &att.MimeType, &att.Size, &att.Data); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		atts = append(atts, &att)
	}
	return atts, rows.Err()
}

// UpsertLabel inserts or updates a label by id
func (s *Store) UpsertLabel(ctx context.Context, label *types.Label) error {
	query := `
		INSERT INTO labels (id, account_id, name, color, type, remote_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			type = excluded.type,
			remote_id = excluded.remote_id
	`
	_, err := s.cache.DB().ExecContext(ctx, query, label.ID, label.AccountID, label.Name, label.Color, string(label.Type), label.RemoteID)
	if err != nil {
		return fmt.Errorf("failed to upsert label: %w", err)
	}
	return nil
}

const labelColumns = "id, account_id, name, COALESCE(color, ''), type, COALESCE(remote_id, '')"

func scanLabel(row rowScanner) (*types.Label, error) {
	var label types.Label
	var kind string
	if err := row.Scan(&label.ID, &label.AccountID, &label.Name, &label.Color, &kind, &label.RemoteID); err != nil {
		return nil, err
	}
	label.Type = types.LabelType(kind)
	return &label, nil
}

// GetLabel retrieves a label by id, or nil if it does not exist
func (s *Store) GetLabel(ctx context.Context, id string) (*types.Label, error) {
	label, err := scanLabel(s.cache.DB().QueryRowContext(ctx, "SELECT "+labelColumns+" FROM labels WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get label: %w", err)
	}
	return label, nil
}

// GetLabelByName retrieves a label by exact name within an account, or nil
func (s *Store) GetLabelByName(ctx context.Context, accountID, name string) (*types.Label, error) {
	label, err := scanLabel(s.cache.DB().QueryRowContext(ctx,
		"SELECT "+labelColumns+" FROM labels WHERE account_id = ? AND name = ? ORDER BY id LIMIT 1",
		accountID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get label by name: %w", err)
	}
	return label, nil
}

// ListLabels lists the labels of an account
func (s *Store) ListLabels(ctx context.Context, accountID string) ([]*types.Label, error) {
	rows, err := s.cache.DB().QueryContext(ctx, "SELECT "+labelColumns+" FROM labels WHERE account_id = ? ORDER BY name", accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []*types.Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// RemoveAllLabelsFromEmail drops every label edge of an email
func (s *Store) RemoveAllLabelsFromEmail(ctx context.Context, emailID string) error {
	if _, err := s.cache.DB().ExecContext(ctx, "DELETE FROM email_labels WHERE email_id = ?", emailID); err != nil {
		return fmt.Errorf("failed to remove labels: %w", err)
	}
	return nil
}

// AddLabelToEmail attaches a label to an email
func (s *Store) AddLabelToEmail(ctx context.Context, emailID, labelID string) error {
	if _, err := s.cache.DB().ExecContext(ctx,
		"INSERT OR IGNORE INTO email_labels (email_id, label_id) VALUES (?, ?)", emailID, labelID); err != nil {
		return fmt.Errorf("failed to add label: %w", err)
	}
	return nil
}

// EmailLabels lists the label ids attached to an email
func (s *Store) EmailLabels(ctx context.Context, emailID string) ([]string, error) {
	rows, err := s.cache.DB().QueryContext(ctx, "SELECT label_id FROM email_labels WHERE email_id = ? ORDER BY label_id", emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to query email labels: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan label id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertDraft inserts or updates a draft by id
func (s *Store) UpsertDraft(ctx context.Context, draft *types.Draft) error {
	query := `
		INSERT INTO drafts (id, account_id, remote_id, to_addrs, cc_addrs, bcc_addrs, subject, body_text, body_html, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			to_addrs = excluded.to_addrs,
			cc_addrs = excluded.cc_addrs,
			bcc_addrs = excluded.bcc_addrs,
			subject = excluded.subject,
			body_text = excluded.body_text,
			body_html = excluded.body_html,
			updated_at = excluded.updated_at
	`
	_, err := s.cache.DB().ExecContext(ctx, query,
		draft.ID, draft.AccountID, draft.RemoteID, draft.To, draft.Cc, draft.Bcc,
		draft.Subject, draft.BodyText, draft.BodyHTML, draft.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert draft: %w", err)
	}
	return nil
}

// DeleteDraft removes a draft by id
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	if _, err := s.cache.DB().ExecContext(ctx, "DELETE FROM drafts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// ListDrafts lists the drafts of an account, newest first
func (s *Store) ListDrafts(ctx context.Context, accountID string) ([]*types.Draft, error) {
	rows, err := s.cache.DB().QueryContext(ctx, `
		SELECT id, account_id, remote_id, COALESCE(to_addrs, ''), COALESCE(cc_addrs, ''), COALESCE(bcc_addrs, ''),
			COALESCE(subject, ''), COALESCE(body_text, ''), COALESCE(body_html, ''), updated_at
		FROM drafts WHERE account_id = ? ORDER BY updated_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*types.Draft
	for rows.Next() {
		var d types.Draft
		if err := rows.Scan(&d.ID, &d.AccountID, &d.RemoteID, &d.To, &d.Cc, &d.Bcc, &d.Subject, &d.BodyText, &d.BodyHTML, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, &d)
	}
	return drafts, rows.Err()
}

// HasEmails checks if an account has any stored emails
func (s *Store) HasEmails(ctx context.Context, accountID string) (bool, error) {
	var count int
	err := s.cache.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM emails WHERE account_id = ?", accountID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check emails count: %w", err)
	}
	return count > 0, nil
}
