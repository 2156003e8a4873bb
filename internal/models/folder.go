package models

// FolderItem is a webmail folder or label as discovered by the automation
// driver. System folders are provider-reserved and protected from rename and
// delete.
type FolderItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"` // "folder" or "label"
	SystemFolder bool   `json:"systemFolder"`
	UnreadCount  int    `json:"unreadCount"`
	Color        string `json:"color,omitempty"`
}

// SystemFolderIDs are present for every provider and always appear in folder
// listings, discovered or not.
var SystemFolderIDs = []string{"inbox", "sent", "drafts", "trash", "spam"}

func SystemFolders() []*FolderItem {
	names := map[string]string{
		"inbox":  "Inbox",
		"sent":   "Sent",
		"drafts": "Drafts",
		"trash":  "Trash",
		"spam":   "Spam",
	}
	folders := make([]*FolderItem, 0, len(SystemFolderIDs))
	for _, id := range SystemFolderIDs {
		folders = append(folders, &FolderItem{
			ID:           id,
			Name:         names[id],
			Type:         "folder",
			SystemFolder: true,
		})
	}
	return folders
}
