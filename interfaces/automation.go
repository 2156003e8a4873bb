package interfaces

import (
	"context"

	"github.com/emailmax/warmup/internal/enum"
	"github.com/emailmax/warmup/internal/models"
)

// AutomationResult is the outcome of one UI automation operation. Expected
// business conditions (unknown folder, protected system folder) come back as
// outcome codes; errors are reserved for the browser session itself failing.
type AutomationResult struct {
	Outcome enum.AutomationOutcome `json:"outcome"`
	Message string                 `json:"message,omitempty"`
	Folder  *models.FolderItem     `json:"folder,omitempty"`
	Count   int                    `json:"count,omitempty"`
}

// AutomationDriver manipulates a webmail UI through a remote browser session
// for operations that have no protocol equivalent.
type AutomationDriver interface {
	ListFolders(ctx context.Context) ([]*models.FolderItem, error)
	CreateFolder(ctx context.Context, name string) (*AutomationResult, error)
	RenameFolder(ctx context.Context, folderID, newName string) (*AutomationResult, error)
	DeleteFolder(ctx context.Context, folderID string) (*AutomationResult, error)
	MoveEmailsToFolder(ctx context.Context, messageIDs []string, destFolderID string) (*AutomationResult, error)
	SetFolderColor(ctx context.Context, folderID, color string) (*AutomationResult, error)
	SearchFolders(term string) []*models.FolderItem
	Close() error
}

// BrowserElement is a visible interactive element scraped from the page,
// used by heuristic selector detection.
type BrowserElement struct {
	Selector string  `json:"selector"`
	Role     string  `json:"role"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Visible  bool    `json:"visible"`
}

// Browser abstracts the remote-controlled browser session so the driver can
// be exercised without a live Chrome instance.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Exists(ctx context.Context, selector string) (bool, error)
	VisibleElements(ctx context.Context) ([]BrowserElement, error)
	Close() error
}
