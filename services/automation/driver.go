package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
	"github.com/emailmax/warmup/internal/utils"
)

type DriverConfig struct {
	MinConfidence   float64
	LearningEnabled bool
	SelectorTTL     time.Duration
}

func (c *DriverConfig) applyDefaults() {
	if c.MinConfidence <= 0 || c.MinConfidence > 1 {
		c.MinConfidence = DefaultMinConfidence
	}
	if c.SelectorTTL <= 0 {
		c.SelectorTTL = DefaultSelectorTTL
	}
}

// Driver manipulates a webmail UI through a remote browser session for
// operations without a protocol equivalent. Selector resolution prefers
// learned selectors and falls back to heuristic detection.
type Driver struct {
	account  *models.MailboxAccount
	browser  interfaces.Browser
	log      logger.Logger
	config   DriverConfig
	cache    *SelectorCache
	detector *ElementDetector

	mu         sync.Mutex
	folders    map[string]*models.FolderItem
	discovered bool
}

func NewDriver(account *models.MailboxAccount, browser interfaces.Browser, log logger.Logger, config DriverConfig) *Driver {
	config.applyDefaults()
	d := &Driver{
		account:  account,
		browser:  browser,
		log:      log,
		config:   config,
		cache:    NewSelectorCache(config.SelectorTTL),
		detector: NewElementDetector(config.MinConfidence),
		folders:  make(map[string]*models.FolderItem),
	}
	for _, folder := range models.SystemFolders() {
		d.folders[folder.ID] = folder
	}
	return d
}

// resolveSelector returns a working selector for the element type: first the
// learned cache, then heuristic detection. Newly detected selectors are
// cached when learning is enabled.
func (d *Driver) resolveSelector(ctx context.Context, target ElementTarget) (string, error) {
	if selector, ok := d.cache.Get(d.account.Provider, target.Type); ok {
		exists, err := d.browser.Exists(ctx, selector)
		if err != nil {
			return "", err
		}
		if exists {
			return selector, nil
		}
		// Layout changed underneath the cached selector.
		d.cache.Invalidate(d.account.Provider, target.Type)
	}

	selector, confidence, err := d.detector.Detect(ctx, d.browser, target)
	if err != nil {
		return "", err
	}

	if d.config.LearningEnabled {
		d.cache.Learn(d.account.Provider, target.Type, selector, confidence)
		d.log.Debugf("[%s] learned selector for %s: %s (confidence %.2f)",
			d.account.ID, target.Type, selector, confidence)
	}
	return selector, nil
}

// ListFolders returns cached or freshly discovered folders. The provider's
// system folders are always present.
func (d *Driver) ListFolders(ctx context.Context) ([]*models.FolderItem, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AutomationDriver.ListFolders")
	defer span.Finish()
	tracing.TagAccount(span, d.account.ID)

	d.mu.Lock()
	discovered := d.discovered
	d.mu.Unlock()

	if !discovered {
		if err := d.discoverFolders(ctx); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	folders := make([]*models.FolderItem, 0, len(d.folders))
	for _, folder := range d.folders {
		folders = append(folders, folder)
	}
	return folders, nil
}

// discoverFolders scans the folder rail and merges findings into the cache.
func (d *Driver) discoverFolders(ctx context.Context) error {
	elements, err := d.browser.VisibleElements(ctx)
	if err != nil {
		return errors.Wrap(err, "folder discovery failed")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, element := range elements {
		if !element.Visible || element.X >= 320 || element.Text == "" {
			continue
		}
		if element.Role != "link" && element.Role != "a" && element.Role != "treeitem" {
			continue
		}
		if d.findByNameLocked(element.Text) != nil {
			continue
		}
		folder := &models.FolderItem{
			ID:   utils.GenerateIdWithPrefix("fld", 10),
			Name: element.Text,
			Type: "folder",
		}
		d.folders[folder.ID] = folder
	}
	d.discovered = true
	return nil
}

func (d *Driver) CreateFolder(ctx context.Context, name string) (*interfaces.AutomationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AutomationDriver.CreateFolder")
	defer span.Finish()
	tracing.TagAccount(span, d.account.ID)

	if name == "" {
		return &interfaces.AutomationResult{
			Outcome: enum.AutomationError,
			Message: "folder name is required",
		}, nil
	}

	steps := []struct {
		target ElementTarget
		typing string
	}{
		{target: ElementTarget{Type: "create_folder_button", Role: "button", TextHints: []string{"create", "new folder", "add folder"}, Region: "left"}},
		{target: ElementTarget{Type: "folder_name_input", Role: "input", TextHints: []string{"name", "folder"}}, typing: name},
		{target: ElementTarget{Type: "folder_confirm_button", Role: "button", TextHints: []string{"save", "create", "ok", "done"}}},
	}
	for _, step := range steps {
		selector, err := d.resolveSelector(ctx, step.target)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if step.typing != "" {
			if err := d.browser.Type(ctx, selector, step.typing); err != nil {
				tracing.TraceErr(span, err)
				return nil, err
			}
			continue
		}
		if err := d.browser.Click(ctx, selector); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	folder := &models.FolderItem{
		ID:   utils.GenerateIdWithPrefix("fld", 10),
		Name: name,
		Type: "folder",
	}
	d.mu.Lock()
	d.folders[folder.ID] = folder
	d.mu.Unlock()

	return &interfaces.AutomationResult{
		Outcome: enum.AutomationSuccess,
		Message: fmt.Sprintf("folder %q created", name),
		Folder:  folder,
	}, nil
}

func (d *Driver) RenameFolder(ctx context.Context, folderID, newName string) (*interfaces.AutomationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AutomationDriver.RenameFolder")
	defer span.Finish()
	tracing.TagAccount(span, d.account.ID)

	folder, result := d.mutableFolder(folderID)
	if result != nil {
		return result, nil
	}

	selector, err := d.resolveSelector(ctx, ElementTarget{
		Type:      "rename_folder_action",
		Role:      "button",
		TextHints: []string{"rename", "edit"},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := d.browser.Click(ctx, selector); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	inputSelector, err := d.resolveSelector(ctx, ElementTarget{
		Type:      "folder_name_input",
		Role:      "input",
		TextHints: []string{"name", "folder"},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := d.browser.Type(ctx, inputSelector, newName); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	d.mu.Lock()
	oldName := folder.Name
	folder.Name = newName
	d.mu.Unlock()

	return &interfaces.AutomationResult{
		Outcome: enum.AutomationSuccess,
		Message: fmt.Sprintf("folder %q renamed to %q", oldName, newName),
		Folder:  folder,
	}, nil
}

func (d *Driver) DeleteFolder(ctx context.Context, folderID string) (*interfaces.AutomationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AutomationDriver.DeleteFolder")
	defer span.Finish()
	tracing.TagAccount(span, d.account.ID)

	folder, result := d.mutableFolder(folderID)
	if result != nil {
		return result, nil
	}

	selector, err := d.resolveSelector(ctx, ElementTarget{
		Type:      "delete_folder_action",
		Role:      "button",
		TextHints: []string{"delete", "remove", "trash"},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := d.browser.Click(ctx, selector); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	d.mu.Lock()
	delete(d.folders, folderID)
	d.mu.Unlock()

	return &interfaces.AutomationResult{
		Outcome: enum.AutomationSuccess,
		Message: fmt.Sprintf("folder %q deleted", folder.Name),
	}, nil
}

func (d *Driver) MoveEmailsToFolder(ctx context.Context, messageIDs []string, destFolderID string) (*interfaces.AutomationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AutomationDriver.MoveEmailsToFolder")
	defer span.Finish()
	tracing.TagAccount(span, d.account.ID)

	d.mu.Lock()
	dest, ok := d.folders[destFolderID]
	d.mu.Unlock()
	if !ok {
		return &interfaces.AutomationResult{
			Outcome: enum.AutomationNotFound,
			Message: fmt.Sprintf("destination folder %q not found", destFolderID),
		}, nil
	}
	if len(messageIDs) == 0 {
		return &interfaces.AutomationResult{
			Outcome: enum.AutomationSuccess,
			Message: "no messages to move",
		}, nil
	}

	moveSelector, err := d.resolveSelector(ctx, ElementTarget{
		Type:      "move_to_folder_action",
		Role:      "button",
		TextHints: []string{"move", "move to"},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := d.browser.Click(ctx, moveSelector); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &interfaces.AutomationResult{
		Outcome: enum.AutomationSuccess,
		Message: fmt.Sprintf("moved %d message(s) to %q", len(messageIDs), dest.Name),
		Count:   len(messageIDs),
	}, nil
}

// SetFolderColor is gated on provider capability; providers without folder
// colors never reach the browser.
func (d *Driver) SetFolderColor(ctx context.Context, folderID, color string) (*interfaces.AutomationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AutomationDriver.SetFolderColor")
	defer span.Finish()
	tracing.TagAccount(span, d.account.ID)

	if !d.account.Provider.Capabilities().SupportsFolderColor {
		return &interfaces.AutomationResult{
			Outcome: enum.AutomationError,
			Message: fmt.Sprintf("provider %s does not support folder colors", d.account.Provider),
		}, nil
	}

	d.mu.Lock()
	folder, ok := d.folders[folderID]
	d.mu.Unlock()
	if !ok {
		return &interfaces.AutomationResult{
			Outcome: enum.AutomationNotFound,
			Message: fmt.Sprintf("folder %q not found", folderID),
		}, nil
	}

	selector, err := d.resolveSelector(ctx, ElementTarget{
		Type:      "folder_color_action",
		Role:      "button",
		TextHints: []string{"color", "label color"},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := d.browser.Click(ctx, selector); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	d.mu.Lock()
	folder.Color = color
	d.mu.Unlock()

	return &interfaces.AutomationResult{
		Outcome: enum.AutomationSuccess,
		Message: fmt.Sprintf("folder %q color set to %s", folder.Name, color),
		Folder:  folder,
	}, nil
}

// SearchFolders matches cached folder names only; no network or browser
// round-trip.
func (d *Driver) SearchFolders(term string) []*models.FolderItem {
	d.mu.Lock()
	defer d.mu.Unlock()

	var matches []*models.FolderItem
	for _, folder := range d.folders {
		if utils.ContainsFold(folder.Name, term) {
			matches = append(matches, folder)
		}
	}
	return matches
}

func (d *Driver) Close() error {
	return d.browser.Close()
}

// mutableFolder guards rename/delete: unknown ids and system folders come
// back as outcome results before any UI action is attempted.
func (d *Driver) mutableFolder(folderID string) (*models.FolderItem, *interfaces.AutomationResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	folder, ok := d.folders[folderID]
	if !ok {
		return nil, &interfaces.AutomationResult{
			Outcome: enum.AutomationNotFound,
			Message: fmt.Sprintf("folder %q not found", folderID),
		}
	}
	if folder.SystemFolder {
		return nil, &interfaces.AutomationResult{
			Outcome: enum.AutomationSystemFolder,
			Message: fmt.Sprintf("folder %q is a system folder and cannot be modified", folder.Name),
		}
	}
	return folder, nil
}

func (d *Driver) findByNameLocked(name string) *models.FolderItem {
	for _, folder := range d.folders {
		if folder.Name == name {
			return folder
		}
	}
	return nil
}
