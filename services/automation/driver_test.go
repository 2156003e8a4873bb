package automation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

// fakeBrowser records interactions and serves a static element scan.
type fakeBrowser struct {
	mu       sync.Mutex
	elements []interfaces.BrowserElement
	clicks   []string
	typed    map[string]string
	// missing lists selectors Exists should report as gone
	missing map[string]bool
	closed  bool
}

func newFakeBrowser(elements ...interfaces.BrowserElement) *fakeBrowser {
	return &fakeBrowser{
		elements: elements,
		typed:    map[string]string{},
		missing:  map[string]bool{},
	}
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error { return nil }

func (b *fakeBrowser) Click(ctx context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clicks = append(b.clicks, selector)
	return nil
}

func (b *fakeBrowser) Type(ctx context.Context, selector, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typed[selector] = text
	return nil
}

func (b *fakeBrowser) Exists(ctx context.Context, selector string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.missing[selector], nil
}

func (b *fakeBrowser) VisibleElements(ctx context.Context) ([]interfaces.BrowserElement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]interfaces.BrowserElement, len(b.elements))
	copy(out, b.elements)
	return out, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) clickCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clicks)
}

func (b *fakeBrowser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// folderUIElements is a page scan containing everything the folder management
// flows need, each at full detection confidence.
func folderUIElements() []interfaces.BrowserElement {
	return []interfaces.BrowserElement{
		{Selector: "#new-folder", Role: "button", Text: "New folder", X: 80, Y: 400, Visible: true},
		{Selector: "#folder-name", Role: "input", Text: "Folder name", X: 500, Y: 300, Visible: true},
		{Selector: "#save", Role: "button", Text: "Save", X: 520, Y: 360, Visible: true},
		{Selector: "#rename", Role: "button", Text: "Rename", X: 200, Y: 250, Visible: true},
		{Selector: "#delete", Role: "button", Text: "Delete", X: 200, Y: 280, Visible: true},
		{Selector: "#move", Role: "button", Text: "Move to", X: 450, Y: 60, Visible: true},
		{Selector: "#color", Role: "button", Text: "Label color", X: 200, Y: 310, Visible: true},
	}
}

func newTestDriver(t *testing.T, provider enum.EmailProvider, browser *fakeBrowser) *Driver {
	t.Helper()
	account := &models.MailboxAccount{
		ID:           "acct1",
		EmailAddress: "warm@example.com",
		Provider:     provider,
	}
	return NewDriver(account, browser, getLogger(), DriverConfig{LearningEnabled: true})
}

func TestListFolders_AlwaysIncludesSystemFolders(t *testing.T) {
	// Arrange: the rail holds one custom folder plus noise outside it
	browser := newFakeBrowser(
		interfaces.BrowserElement{Selector: "#fld-receipts", Role: "treeitem", Text: "Receipts", X: 120, Visible: true},
		interfaces.BrowserElement{Selector: "#compose", Role: "button", Text: "Compose", X: 40, Visible: true},
		interfaces.BrowserElement{Selector: "#ad", Role: "link", Text: "Upgrade now", X: 900, Visible: true},
	)
	driver := newTestDriver(t, enum.ProviderGeneric, browser)

	// Act
	folders, err := driver.ListFolders(context.Background())

	// Assert: five system folders plus the discovered one
	require.NoError(t, err)
	assert.Len(t, folders, 6)

	names := map[string]bool{}
	for _, folder := range folders {
		names[folder.Name] = true
	}
	assert.True(t, names["Inbox"])
	assert.True(t, names["Receipts"])
	assert.False(t, names["Compose"])
	assert.False(t, names["Upgrade now"])
}

func TestCreateFolder_RunsUIFlowAndLearnsSelectors(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)

	// Act
	result, err := driver.CreateFolder(context.Background(), "Warmup")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationSuccess, result.Outcome)
	require.NotNil(t, result.Folder)
	assert.Equal(t, "Warmup", result.Folder.Name)
	assert.False(t, result.Folder.SystemFolder)

	assert.Equal(t, []string{"#new-folder", "#save"}, browser.clicks)
	assert.Equal(t, "Warmup", browser.typed["#folder-name"])

	// Each resolved element type got cached for next time.
	assert.Equal(t, 3, driver.cache.Len())
	selector, ok := driver.cache.Get(enum.ProviderGmail, "create_folder_button")
	assert.True(t, ok)
	assert.Equal(t, "#new-folder", selector)
}

func TestCreateFolder_EmptyNameRejectedWithoutBrowser(t *testing.T) {
	// Arrange
	browser := newFakeBrowser()
	driver := newTestDriver(t, enum.ProviderGmail, browser)

	// Act
	result, err := driver.CreateFolder(context.Background(), "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationError, result.Outcome)
	assert.Zero(t, browser.clickCount())
}

func TestRenameFolder_SystemFolderProtected(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)

	// Act
	result, err := driver.RenameFolder(context.Background(), "inbox", "Primary")

	// Assert: refused before any UI action
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationSystemFolder, result.Outcome)
	assert.Zero(t, browser.clickCount())
}

func TestRenameFolder_UpdatesCachedName(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)
	created, err := driver.CreateFolder(context.Background(), "Warmup")
	require.NoError(t, err)

	// Act
	result, err := driver.RenameFolder(context.Background(), created.Folder.ID, "Warmup 2")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationSuccess, result.Outcome)
	assert.Equal(t, "Warmup 2", result.Folder.Name)
	assert.Equal(t, "Warmup 2", browser.typed["#folder-name"])
}

func TestDeleteFolder_UnknownID(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)

	// Act
	result, err := driver.DeleteFolder(context.Background(), "fld_missing")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationNotFound, result.Outcome)
	assert.Zero(t, browser.clickCount())
}

func TestDeleteFolder_RemovesFromListing(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)
	created, err := driver.CreateFolder(context.Background(), "Temp")
	require.NoError(t, err)

	// Act
	result, err := driver.DeleteFolder(context.Background(), created.Folder.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationSuccess, result.Outcome)
	assert.Empty(t, driver.SearchFolders("Temp"))
}

func TestSetFolderColor_GatedOnProviderCapability(t *testing.T) {
	// Arrange: outlook folders have no color support
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderOutlook, browser)

	// Act
	result, err := driver.SetFolderColor(context.Background(), "inbox", "red")

	// Assert: capability check fires before the folder lookup or any UI action
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationError, result.Outcome)
	assert.Contains(t, result.Message, "does not support folder colors")
	assert.Zero(t, browser.clickCount())
}

func TestSetFolderColor_SupportedProvider(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)
	created, err := driver.CreateFolder(context.Background(), "Warmup")
	require.NoError(t, err)

	// Act
	result, err := driver.SetFolderColor(context.Background(), created.Folder.ID, "green")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationSuccess, result.Outcome)
	assert.Equal(t, "green", result.Folder.Color)
}

func TestMoveEmailsToFolder_EmptySelectionIsNoOp(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)

	// Act
	result, err := driver.MoveEmailsToFolder(context.Background(), nil, "inbox")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationSuccess, result.Outcome)
	assert.Zero(t, browser.clickCount())
}

func TestMoveEmailsToFolder_CountsMovedMessages(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)

	// Act
	result, err := driver.MoveEmailsToFolder(context.Background(),
		[]string{"<a@x>", "<b@x>", "<c@x>"}, "spam")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, enum.AutomationSuccess, result.Outcome)
	assert.Equal(t, 3, result.Count)
}

func TestSearchFolders_CaseInsensitiveSubstring(t *testing.T) {
	// Arrange
	browser := newFakeBrowser(folderUIElements()...)
	driver := newTestDriver(t, enum.ProviderGmail, browser)
	_, err := driver.CreateFolder(context.Background(), "Newsletter Archive")
	require.NoError(t, err)

	// Act & Assert
	matches := driver.SearchFolders("newsletter")
	require.Len(t, matches, 1)
	assert.Equal(t, "Newsletter Archive", matches[0].Name)

	assert.Empty(t, driver.SearchFolders("nonexistent"))
}

func TestResolveSelector_StaleCacheEntryIsReDetected(t *testing.T) {
	// Arrange: a learned selector that no longer exists on the page
	browser := newFakeBrowser(folderUIElements()...)
	browser.missing["#old-new-folder"] = true
	driver := newTestDriver(t, enum.ProviderGmail, browser)
	driver.cache.Learn(enum.ProviderGmail, "create_folder_button", "#old-new-folder", 0.9)

	// Act
	selector, err := driver.resolveSelector(context.Background(), ElementTarget{
		Type:      "create_folder_button",
		Role:      "button",
		TextHints: []string{"create", "new folder", "add folder"},
		Region:    "left",
	})

	// Assert: stale entry replaced by the freshly detected selector
	require.NoError(t, err)
	assert.Equal(t, "#new-folder", selector)
	cached, ok := driver.cache.Get(enum.ProviderGmail, "create_folder_button")
	assert.True(t, ok)
	assert.Equal(t, "#new-folder", cached)
}

func TestDetect_FailsBelowConfidenceThreshold(t *testing.T) {
	// Arrange: nothing on the page resembles the target
	browser := newFakeBrowser(
		interfaces.BrowserElement{Selector: "#banner", Role: "img", Text: "", X: 500, Visible: true},
	)
	detector := NewElementDetector(0.6)

	// Act
	_, confidence, err := detector.Detect(context.Background(), browser, ElementTarget{
		Type:      "create_folder_button",
		Role:      "button",
		TextHints: []string{"create"},
		Region:    "left",
	})

	// Assert
	require.Error(t, err)
	assert.Less(t, confidence, 0.6)
}

func TestClose_ReleasesBrowserSession(t *testing.T) {
	// Arrange
	browser := newFakeBrowser()
	driver := newTestDriver(t, enum.ProviderGmail, browser)

	// Act
	require.NoError(t, driver.Close())

	// Assert
	assert.True(t, browser.closed)
}
