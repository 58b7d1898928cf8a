package lib

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/uvensys/cerberus"
	"github.com/uvensys/cerberus/internal"
	"github.com/uvensys/cerberus/lib/store/memory"
)

func init() {
	internal.InitSlog("debug")
}

func testConfig() Config {
	return Config{
		ClientID:       "app1",
		GuildID:        "guild1",
		AdminID:        "admin1",
		VerifiedRoleID: "role1",
		PanelChannelID: "panel1",
		BotName:        "Cerberus",
	}
}

func testBot(t *testing.T, f *fakeSession, mutate func(c *Config)) *Bot {
	t.Helper()

	conf := testConfig()
	if mutate != nil {
		mutate(&conf)
	}

	bot, err := New(Options{
		Session: f,
		Store:   memory.New(t.Context()),
		Config:  conf,
	})
	if err != nil {
		t.Fatal(err)
	}

	return bot
}

// fakeSession implements Session in memory. Set pendingReply before a button
// press to have it delivered to the first message collector registered.
type fakeSession struct {
	mu sync.Mutex

	roles         map[string][]string
	handlers      map[int]interface{}
	nextHandlerID int

	commands     []*discordgo.ApplicationCommand
	responses    map[string]*discordgo.InteractionResponse
	edits        map[string]string
	complexSends map[string][]*discordgo.MessageSend
	simpleSends  map[string][]string
	dmCreates    int

	pendingReply *discordgo.Message

	failMemberFetch bool
	failDMCreate    bool
	failDMSend      bool
	failRoleChange  bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		roles:        map[string][]string{},
		handlers:     map[int]interface{}{},
		responses:    map[string]*discordgo.InteractionResponse{},
		edits:        map[string]string{},
		complexSends: map[string][]*discordgo.MessageSend{},
		simpleSends:  map[string][]string{},
	}
}

func (f *fakeSession) Open() error  { return nil }
func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) AddHandler(handler interface{}) func() {
	f.mu.Lock()
	id := f.nextHandlerID
	f.nextHandlerID++
	f.handlers[id] = handler

	var pending *discordgo.Message
	fn, ok := handler.(func(*discordgo.Session, *discordgo.MessageCreate))
	if ok {
		pending = f.pendingReply
		f.pendingReply = nil
	}
	f.mu.Unlock()

	if ok && pending != nil {
		go fn(nil, &discordgo.MessageCreate{Message: pending})
	}

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeSession) ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = commands
	return commands, nil
}

func (f *fakeSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[interaction.ID] = resp
	return nil
}

func (f *fakeSession) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if newresp.Content != nil {
		f.edits[interaction.ID] = *newresp.Content
	}
	return &discordgo.Message{}, nil
}

func (f *fakeSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failMemberFetch {
		return nil, errors.New("fake: unknown member")
	}

	return &discordgo.Member{
		User: &discordgo.User{
			ID:            userID,
			Username:      "user-" + userID,
			Discriminator: "0",
		},
		Roles: slices.Clone(f.roles[userID]),
	}, nil
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRoleChange {
		return errors.New("fake: can't change roles")
	}

	if !slices.Contains(f.roles[userID], roleID) {
		f.roles[userID] = append(f.roles[userID], roleID)
	}
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRoleChange {
		return errors.New("fake: can't change roles")
	}

	f.roles[userID] = slices.DeleteFunc(f.roles[userID], func(r string) bool { return r == roleID })
	return nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDMCreate {
		return nil, errors.New("fake: user has DMs closed")
	}

	f.dmCreates++
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDMSend {
		return nil, errors.New("fake: can't send message")
	}

	f.simpleSends[channelID] = append(f.simpleSends[channelID], content)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDMSend {
		return nil, errors.New("fake: can't send message")
	}

	f.complexSends[channelID] = append(f.complexSends[channelID], data)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) hasRole(userID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.roles[userID], roleID)
}

func (f *fakeSession) grantRole(userID, roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = append(f.roles[userID], roleID)
}

func TestNew(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts Options
		err  error
	}{
		{
			name: "no session",
			opts: Options{Config: testConfig()},
			err:  ErrNoSession,
		},
		{
			name: "no store",
			opts: Options{Session: newFakeSession(), Config: testConfig()},
			err:  ErrNoStore,
		},
		{
			name: "invalid config",
			opts: Options{Session: newFakeSession(), Store: memory.New(t.Context()), Config: Config{}},
			err:  ErrNoClientID,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v but got: %v", tt.err, err)
			}
		})
	}

	t.Run("defaults applied", func(t *testing.T) {
		f := newFakeSession()
		bot := testBot(t, f, func(c *Config) {
			c.BotName = ""
			c.ReplyWindow = 0
		})

		if bot.conf.BotName != "Cerberus" {
			t.Errorf("wanted default bot name but got %q", bot.conf.BotName)
		}
		if bot.conf.ReplyWindow != cerberus.DefaultReplyWindow {
			t.Errorf("wanted default reply window but got %v", bot.conf.ReplyWindow)
		}
	})
}

func TestRegisterCommands(t *testing.T) {
	f := newFakeSession()
	bot := testBot(t, f, nil)

	if err := bot.registerCommands(); err != nil {
		t.Fatal(err)
	}

	want := []string{cerberus.CmdForceVerify, cerberus.CmdForceUnverify, cerberus.CmdResendPanel}
	var got []string
	for _, cmd := range f.commands {
		got = append(got, cmd.Name)
	}

	if !slices.Equal(got, want) {
		t.Errorf("wanted commands %v but got %v", want, got)
	}
}
