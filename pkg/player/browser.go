package player

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/latoulicious/Hokko/pkg/common"
)

const browserPrefix = "queue"

// Browser navigation actions, used as the last segment of button custom ids
const (
	BrowseFirst = "first"
	BrowsePrev  = "prev"
	BrowseNext  = "next"
	BrowseLast  = "last"
	BrowseClose = "close"
)

// Browser is a paginated read-only view over a snapshot of the upcoming
// tracks. It ends when its timer expires, reset on every navigation, or
// when closed.
type Browser struct {
	id      string
	guildID snowflake.ID
	total   int
	pages   [][]common.Track
	timeout time.Duration

	mu     sync.Mutex
	page   int
	timer  *time.Timer
	ended  bool
	detach func()
	onEnd  func(*Browser)
	done   chan struct{}
}

// NewBrowser snapshots tracks and starts the expiry timer
func NewBrowser(guildID snowflake.ID, tracks []common.Track, pageSize int, timeout time.Duration) *Browser {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}

	snapshot := make([]common.Track, len(tracks))
	copy(snapshot, tracks)

	b := &Browser{
		id:      uuid.NewString(),
		guildID: guildID,
		total:   len(snapshot),
		pages:   lo.Chunk(snapshot, pageSize),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	b.timer = time.AfterFunc(timeout, b.expire)
	return b
}

// ID identifies the browser in button custom ids
func (b *Browser) ID() string {
	return b.id
}

// GuildID returns the guild whose queue was snapshotted
func (b *Browser) GuildID() snowflake.ID {
	return b.guildID
}

// Total returns the number of tracks in the snapshot
func (b *Browser) Total() int {
	return b.total
}

// PageCount is at least one so an empty snapshot still renders a page
func (b *Browser) PageCount() int {
	return max(1, len(b.pages))
}

// Page returns the current page index
func (b *Browser) Page() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page
}

// Items returns the tracks on the current page
func (b *Browser) Items() []common.Track {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.itemsLocked()
}

func (b *Browser) itemsLocked() []common.Track {
	if len(b.pages) == 0 {
		return nil
	}
	return b.pages[b.page]
}

// GoTo moves to page, clamped to the valid range, and resets the timer.
// It returns the page actually selected.
func (b *Browser) GoTo(page int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ended {
		return b.page
	}

	b.page = min(max(page, 0), b.PageCount()-1)
	b.timer.Reset(b.timeout)
	return b.page
}

// Next moves one page forward
func (b *Browser) Next() int { return b.GoTo(b.Page() + 1) }

// Prev moves one page back
func (b *Browser) Prev() int { return b.GoTo(b.Page() - 1) }

// First moves to the first page
func (b *Browser) First() int { return b.GoTo(0) }

// Last moves to the last page
func (b *Browser) Last() int { return b.GoTo(b.PageCount() - 1) }

// Navigate applies one of the Browse* actions. Closing ends the browser
// without detaching, the caller removes the controls itself.
func (b *Browser) Navigate(action string) bool {
	switch action {
	case BrowseFirst:
		b.First()
	case BrowsePrev:
		b.Prev()
	case BrowseNext:
		b.Next()
	case BrowseLast:
		b.Last()
	case BrowseClose:
		b.Close()
	default:
		return false
	}
	return true
}

// Attach sets the function that strips the bound message's controls on
// expiry. If the browser already expired it runs immediately.
func (b *Browser) Attach(detach func()) {
	b.mu.Lock()
	if !b.ended {
		b.detach = detach
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	if detach != nil {
		detach()
	}
}

// Close ends the browser now and stops its timer
func (b *Browser) Close() {
	b.end(false)
}

// Ended reports whether the browser timed out or was closed
func (b *Browser) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}

// Done is closed when the browser ends
func (b *Browser) Done() <-chan struct{} {
	return b.done
}

func (b *Browser) expire() {
	b.end(true)
}

func (b *Browser) end(detach bool) {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return
	}
	b.ended = true
	b.timer.Stop()
	fn, onEnd := b.detach, b.onEnd
	b.detach = nil
	close(b.done)
	b.mu.Unlock()

	if detach && fn != nil {
		fn()
	}
	if onEnd != nil {
		onEnd(b)
	}
}

// Embed renders the current page
func (b *Browser) Embed() *discordgo.MessageEmbed {
	b.mu.Lock()
	defer b.mu.Unlock()

	offset := 0
	for i := 0; i < b.page; i++ {
		offset += len(b.pages[i])
	}

	var sb strings.Builder
	for i, track := range b.itemsLocked() {
		sb.WriteString(fmt.Sprintf("%d. **%s** `%s`\n", offset+i+1, common.TrimText(track.Title, titleLimit*2), common.TrackLength(track)))
	}
	if b.total == 0 {
		sb.WriteString("📭 No songs in queue.")
	}

	return &discordgo.MessageEmbed{
		Title:       "📋 Up Next",
		Description: sb.String(),
		Color:       colorPlaying,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d of %d | %d songs", b.page+1, b.PageCount(), b.total),
		},
	}
}

// Components renders the navigation buttons for the current page
func (b *Browser) Components() []discordgo.MessageComponent {
	b.mu.Lock()
	page, ended := b.page, b.ended
	b.mu.Unlock()

	if ended {
		return []discordgo.MessageComponent{}
	}

	last := b.PageCount() - 1
	button := func(action, emoji string, disabled bool) discordgo.Button {
		return discordgo.Button{
			CustomID: BrowserCustomID(b.id, action),
			Style:    discordgo.SecondaryButton,
			Emoji:    &discordgo.ComponentEmoji{Name: emoji},
			Disabled: disabled,
		}
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				button(BrowseFirst, "⏪", page == 0),
				button(BrowsePrev, "⬅️", page == 0),
				button(BrowseNext, "➡️", page == last),
				button(BrowseLast, "⏩", page == last),
				discordgo.Button{
					CustomID: BrowserCustomID(b.id, BrowseClose),
					Style:    discordgo.DangerButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "✖️"},
				},
			},
		},
	}
}

// BrowserCustomID builds the custom id of a browser button
func BrowserCustomID(id, action string) string {
	return browserPrefix + ":" + id + ":" + action
}

// ParseBrowserCustomID splits a browser button custom id
func ParseBrowserCustomID(customID string) (id, action string, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != browserPrefix || parts[1] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// BrowserRegistry routes button presses to open browsers
type BrowserRegistry struct {
	browsers map[string]*Browser
	mutex    sync.RWMutex
}

// NewBrowserRegistry creates an empty registry
func NewBrowserRegistry() *BrowserRegistry {
	return &BrowserRegistry{
		browsers: make(map[string]*Browser),
	}
}

// Register tracks b until it ends. An already ended browser is not added.
func (r *BrowserRegistry) Register(b *Browser) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ended {
		return
	}

	r.mutex.Lock()
	r.browsers[b.id] = b
	r.mutex.Unlock()

	b.onEnd = r.cleanup
}

// Get returns an open browser by id
func (r *BrowserRegistry) Get(id string) (*Browser, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	b, ok := r.browsers[id]
	return b, ok
}

// Len returns the number of open browsers
func (r *BrowserRegistry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.browsers)
}

// CloseAll ends every open browser
func (r *BrowserRegistry) CloseAll() {
	r.mutex.RLock()
	open := lo.Values(r.browsers)
	r.mutex.RUnlock()

	for _, b := range open {
		b.Close()
	}
}

func (r *BrowserRegistry) cleanup(b *Browser) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.browsers, b.id)
}
