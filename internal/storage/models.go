package storage

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Chat struct {
	ID         string
	Name       string
	Folder     *string
	IsTemplate bool
}

// ChatListItem is a chat row joined with the timestamp of its most
// recent message, used for ordering chat lists.
type ChatListItem struct {
	ID            string
	Name          string
	IsTemplate    bool
	LastMessageAt *string
}

type Message struct {
	ID       string
	ChatID   string
	Role     string
	Model    string
	DateTime string
	Content  string
}

type Attachment struct {
	ID        string
	MessageID string
	Type      string
	Name      string
	Content   string
}

type ChatFolder struct {
	ID     string
	Name   string
	Color  *string
	Parent *string
}

// Instance is a configured model backend. Properties is an opaque JSON
// bag (url, credentials, tunables) interpreted by the caller.
type Instance struct {
	ID         string
	Pinned     bool
	Type       string
	Properties string
}

type ModelPreferences struct {
	ID      string
	Picture *string
	Voice   *string
}

type Prompt struct {
	ID        string
	Name      string
	Content   string
	Category  *string
	CreatedAt string
}

type Bookmark struct {
	ID        string
	MessageID string
	CreatedAt string
}

// BookmarkedMessage is a bookmark joined with its message and chat for
// display purposes.
type BookmarkedMessage struct {
	BookmarkID string
	MessageID  string
	ChatID     string
	ChatName   string
	Content    string
	CreatedAt  string
}

type ModelPin struct {
	ID         string
	ModelName  string
	InstanceID string
	PinOrder   int
}

// BackupSchedule describes one automatic backup. BackupPath is the
// directory that receives the timestamped backup files.
type BackupSchedule struct {
	ID            string
	IntervalHours int
	BackupPath    string
	LastBackup    *string
	Enabled       bool
}
