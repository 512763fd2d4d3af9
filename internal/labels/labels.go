// Package labels maps provider-native categorization (Gmail labels,
// Microsoft categories, IMAP folders) onto local Label rows.
package labels

import (
	"strings"

	"github.com/brandon/mail-sync/pkg/types"
)

// GmailSystemLabels are reserved Gmail label ids that never become local labels.
var GmailSystemLabels = map[string]bool{
	"INBOX":     true,
	"SENT":      true,
	"DRAFT":     true,
	"TRASH":     true,
	"SPAM":      true,
	"STARRED":   true,
	"UNREAD":    true,
	"IMPORTANT": true,
	"CHAT":      true,
}

// GmailCategoryPrefix marks Gmail tab pseudo-labels such as CATEGORY_SOCIAL.
const GmailCategoryPrefix = "CATEGORY_"

// SpecialFolders are IMAP folder names excluded from folder labels, compared case-insensitively.
var SpecialFolders = map[string]bool{
	"inbox":            true,
	"sent":             true,
	"sent items":       true,
	"sent messages":    true,
	"draft":            true,
	"drafts":           true,
	"trash":            true,
	"deleted items":    true,
	"deleted messages": true,
	"bulk":             true,
	"bulk mail":        true,
	"spam":             true,
	"junk":             true,
	"archive":          true,
	"archives":         true,
}

// OutlookPresetColors maps Graph category presets to display colors.
var OutlookPresetColors = map[string]string{
	"preset0":  "#e74856",
	"preset1":  "#ff8c00",
	"preset2":  "#ab7b4f",
	"preset3":  "#fff100",
	"preset4":  "#47d041",
	"preset5":  "#30c6cc",
	"preset6":  "#73aa24",
	"preset7":  "#00bcf2",
	"preset8":  "#8764b8",
	"preset9":  "#f495bf",
	"preset10": "#a0aeb2",
	"preset11": "#4c596e",
	"preset12": "#8a8886",
	"preset13": "#5c5c5c",
	"preset14": "#000000",
	"preset15": "#a80000",
	"preset16": "#c45a00",
	"preset17": "#8c5a2b",
	"preset18": "#c19c00",
	"preset19": "#0b6a0b",
	"preset20": "#038387",
	"preset21": "#6b7e29",
	"preset22": "#004e8c",
	"preset23": "#5c2e91",
	"preset24": "#a4262c",
}

// GmailLabelID namespaces a Gmail label id per account.
func GmailLabelID(accountID, remoteID string) string {
	return "gmail:" + accountID + ":" + remoteID
}

// CategoryLabelID namespaces a Microsoft category name per account.
func CategoryLabelID(accountID, name string) string {
	return "microsoft:" + accountID + ":" + name
}

// FolderLabelID namespaces an IMAP folder path per account.
func FolderLabelID(accountID, path string) string {
	return "folder:" + accountID + ":" + path
}

// IsGmailSystem reports whether a Gmail label id is reserved.
func IsGmailSystem(remoteID string) bool {
	return GmailSystemLabels[remoteID] || strings.HasPrefix(remoteID, GmailCategoryPrefix)
}

// IsSpecialFolder reports whether an IMAP folder is a reserved mailbox.
// Nested paths such as "[Gmail]/Trash" or "INBOX.Sent" are matched on their last segment.
func IsSpecialFolder(path, delimiter string) bool {
	name := path
	if delimiter != "" {
		if i := strings.LastIndex(path, delimiter); i >= 0 {
			name = path[i+len(delimiter):]
		}
	}
	return SpecialFolders[strings.ToLower(name)] || strings.EqualFold(path, "INBOX")
}

// MapGmail converts a Gmail label. ok is false for system labels.
func MapGmail(accountID, remoteID, name, color string) (types.Label, bool) {
	if IsGmailSystem(remoteID) {
		return types.Label{}, false
	}
	return types.Label{
		ID:        GmailLabelID(accountID, remoteID),
		AccountID: accountID,
		Name:      name,
		Color:     color,
		Type:      types.LabelUser,
		RemoteID:  remoteID,
	}, true
}

// MapCategory converts a Microsoft category. Categories are plain names with no remote id.
func MapCategory(accountID, name, preset string) (types.Label, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Label{}, false
	}
	return types.Label{
		ID:        CategoryLabelID(accountID, name),
		AccountID: accountID,
		Name:      name,
		Color:     OutlookPresetColors[strings.ToLower(preset)],
		Type:      types.LabelUser,
	}, true
}

// MapFolder converts an IMAP folder. ok is false for special folders and
// folders flagged \Noselect.
func MapFolder(accountID, path, delimiter string, attributes []string) (types.Label, bool) {
	if IsSpecialFolder(path, delimiter) {
		return types.Label{}, false
	}
	for _, attr := range attributes {
		if strings.EqualFold(attr, `\Noselect`) || strings.EqualFold(attr, `\NonExistent`) {
			return types.Label{}, false
		}
	}
	name := path
	if delimiter != "" {
		if i := strings.LastIndex(path, delimiter); i >= 0 {
			name = path[i+len(delimiter):]
		}
	}
	return types.Label{
		ID:        FolderLabelID(accountID, path),
		AccountID: accountID,
		Name:      name,
		Type:      types.LabelFolder,
		RemoteID:  path,
	}, true
}
