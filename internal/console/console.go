// Package console is a line oriented terminal front end for the client.
package console

import (
	"bufio"
	"context"
	"fmt"
	"github.com/practice-sem-2/chat-client/internal/client"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/practice-sem-2/chat-client/internal/usecases"
	"github.com/sirupsen/logrus"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is the part of client.Client the console drives.
type Client interface {
	OnEvent(o client.Observer)
	Profile() *models.Profile
	Users() []models.Profile
	Groups() []models.Group
	Search(term string) []models.Profile
	DisplayName(userId string) string
	Refresh(ctx context.Context)
	SelectUser(ctx context.Context, userId string)
	SelectGroup(ctx context.Context, groupId string)
	Selection() (*models.Profile, *models.Group)
	Popup() *usecases.Popup
	Request() *models.ChatRequest
	OtherTyping() bool
	Keystroke(ctx context.Context, draft string)
	Send(ctx context.Context) (usecases.SendResult, error)
	AcceptRequest(ctx context.Context)
	RejectRequest(ctx context.Context)
	SetStatus(ctx context.Context, status models.PresenceStatus)
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate)
	CreateGroup(ctx context.Context, name string)
}

const help = `commands:
  /users              list people
  /groups             list your groups
  /search <term>      find people by name or email
  /user <n|id>        chat with a person
  /group <n|id>       chat in a group
  /newgroup <name>    create a group
  /accept, /reject    answer the chat request
  /status <status>    set your status
  /name <name>        change your display name
  /color <#hex>       change your avatar color
  /who                show who you are and where you are
  /quit               leave
anything else is sent to the active conversation`

type Console struct {
	client Client
	logger logrus.FieldLogger
	now    func() time.Time

	mu          sync.Mutex
	out         io.Writer
	printed     map[string]struct{}
	lastPopup   string
	otherTyping bool
}

func New(c Client, out io.Writer, logger logrus.FieldLogger) *Console {
	con := &Console{
		client:  c,
		logger:  logger,
		now:     time.Now,
		out:     out,
		printed: make(map[string]struct{}),
	}
	c.OnEvent(con.handle)
	return con
}

// Run executes commands read from in until /quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	c.printf("%s\n", help)

	lines := make(chan string)
	errs := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			if quit := c.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Execute runs one input line and reports whether the user asked to quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, "/") {
		c.send(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		c.printf("%s\n", help)
	case "/users":
		c.client.Refresh(ctx)
		c.printUsers(c.client.Users())
	case "/groups":
		c.printGroups(c.client.Groups())
	case "/search":
		c.printUsers(c.client.Search(arg))
	case "/user":
		if id, ok := c.resolveUser(arg); ok {
			c.client.SelectUser(ctx, id)
		} else {
			c.printf("! unknown user %q\n", arg)
		}
	case "/group":
		if id, ok := c.resolveGroup(arg); ok {
			c.client.SelectGroup(ctx, id)
		} else {
			c.printf("! unknown group %q\n", arg)
		}
	case "/newgroup":
		if arg == "" {
			c.printf("! group name is required\n")
			return false
		}
		c.client.CreateGroup(ctx, arg)
	case "/accept":
		c.client.AcceptRequest(ctx)
	case "/reject":
		c.client.RejectRequest(ctx)
	case "/status":
		status, err := models.ParsePresenceStatus(arg)
		if err != nil {
			c.printf("! %v, choose one of: %s\n", err, statusList())
			return false
		}
		c.client.SetStatus(ctx, status)
	case "/name":
		if arg == "" {
			c.printf("! display name is required\n")
			return false
		}
		c.client.UpdateProfile(ctx, models.ProfileUpdate{DisplayName: &arg})
	case "/color":
		if arg == "" {
			c.printf("! color is required, for example #3b82f6\n")
			return false
		}
		c.client.UpdateProfile(ctx, models.ProfileUpdate{AvatarColor: &arg})
	case "/who":
		c.printWho()
	default:
		c.printf("! unknown command %s, try /help\n", cmd)
	}
	return false
}

func (c *Console) send(ctx context.Context, text string) {
	c.client.Keystroke(ctx, text)
	res, err := c.client.Send(ctx)
	if err != nil {
		c.printf("! message not sent: %v\n", err)
		return
	}

	switch res.Decision {
	case usecases.GateHandshakeSent:
		c.printf("* chat request sent, you can write once it is accepted\n")
	case usecases.GateBlocked:
		c.printf("* waiting for the chat request to be accepted\n")
	}
}

func (c *Console) resolveUser(arg string) (string, bool) {
	users := c.client.Users()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(users) {
			return "", false
		}
		return users[n-1].ID, true
	}
	if !usecases.ValidateUUID(arg) {
		return "", false
	}
	for _, u := range users {
		if u.ID == arg {
			return u.ID, true
		}
	}
	return "", false
}

func (c *Console) resolveGroup(arg string) (string, bool) {
	groups := c.client.Groups()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(groups) {
			return "", false
		}
		return groups[n-1].ID, true
	}
	if !usecases.ValidateUUID(arg) {
		return "", false
	}
	for _, g := range groups {
		if g.ID == arg {
			return g.ID, true
		}
	}
	return "", false
}

func (c *Console) handle(e client.Event) {
	switch e.Kind {
	case client.EventSelection:
		c.mu.Lock()
		c.printed = make(map[string]struct{})
		c.otherTyping = false
		c.mu.Unlock()
		c.printf("--- %s ---\n", c.title())
	case client.EventMessages:
		c.printMessages(e.Messages)
	case client.EventRequest:
		c.printRequest()
	case client.EventTyping:
		c.printTyping()
	case client.EventProfile:
		if p := c.client.Profile(); p != nil {
			c.printf("* %s is %s\n", p.DisplayName, p.Status.OrDefault())
		}
	case client.EventRoster:
		c.printf("* %d people, %d groups\n", len(c.client.Users()), len(c.client.Groups()))
	}
}

func (c *Console) title() string {
	user, group := c.client.Selection()
	switch {
	case user != nil:
		return fmt.Sprintf("%s, %s", user.DisplayName, user.Presence(c.now()))
	case group != nil:
		return "#" + group.Name
	default:
		return "no conversation"
	}
}

func (c *Console) printMessages(messages []models.Message) {
	fresh := make([]models.Message, 0)
	c.mu.Lock()
	for _, m := range messages {
		if _, ok := c.printed[m.ID]; !ok {
			c.printed[m.ID] = struct{}{}
			fresh = append(fresh, m)
		}
	}
	c.mu.Unlock()

	for _, m := range fresh {
		c.printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), c.client.DisplayName(m.SenderID), m.Content)
	}

	popup := c.client.Popup()
	if popup == nil {
		return
	}

	c.mu.Lock()
	shown := popup.MessageID == c.lastPopup
	c.lastPopup = popup.MessageID
	c.mu.Unlock()

	if !shown {
		c.printf("(!) %s: %s\n", popup.Sender, popup.Content)
	}
}

func (c *Console) printRequest() {
	req := c.client.Request()
	if req == nil {
		return
	}

	me := ""
	if p := c.client.Profile(); p != nil {
		me = p.ID
	}

	switch {
	case req.Status == models.RequestPending && req.RecipientID == me:
		c.printf("* %s wants to chat, /accept or /reject\n", c.client.DisplayName(req.SenderID))
	case req.Status == models.RequestPending:
		c.printf("* chat request pending\n")
	case req.Status == models.RequestRejected:
		c.printf("* chat request was rejected\n")
	case req.Status == models.RequestAccepted:
		c.printf("* chat request accepted\n")
	}
}

func (c *Console) printTyping() {
	typing := c.client.OtherTyping()

	c.mu.Lock()
	flipped := typing && !c.otherTyping
	c.otherTyping = typing
	c.mu.Unlock()

	if !flipped {
		return
	}

	if user, _ := c.client.Selection(); user != nil {
		c.printf("... %s is typing\n", user.DisplayName)
	} else {
		c.printf("... someone is typing\n")
	}
}

func (c *Console) printUsers(users []models.Profile) {
	if len(users) == 0 {
		c.printf("* nobody found\n")
		return
	}
	now := c.now()
	for i, u := range users {
		c.printf("%2d. %s <%s> [%s] %s\n", i+1, u.DisplayName, u.Email, u.Status.OrDefault(), u.Presence(now))
	}
}

func (c *Console) printGroups(groups []models.Group) {
	if len(groups) == 0 {
		c.printf("* no groups yet, create one with /newgroup\n")
		return
	}
	for i, g := range groups {
		c.printf("%2d. #%s\n", i+1, g.Name)
	}
}

func (c *Console) printWho() {
	p := c.client.Profile()
	if p == nil {
		c.printf("* not signed in\n")
		return
	}
	c.printf("* %s <%s> [%s] %s, talking to: %s\n", p.DisplayName, p.Email, p.Status.OrDefault(), p.AvatarColor, c.title())
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.WithError(err).Warn("can't write to console")
	}
}

func statusList() string {
	labels := make([]string, len(models.PresenceStatuses))
	for i, s := range models.PresenceStatuses {
		labels[i] = string(s)
	}
	return strings.Join(labels, ", ")
}
