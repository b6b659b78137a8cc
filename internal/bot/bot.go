package bot

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"timeclock/internal/config"
	"timeclock/internal/db"
	"timeclock/internal/session"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

type Bot struct {
	config     *config.Config
	db         *db.DB
	session    *discordgo.Session
	projects   *projectCache
	shutdownCh chan struct{}
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup

	// One controller per employee so concurrent commands from different
	// users never share a session belief.
	ctrlMu      sync.Mutex
	controllers map[uuid.UUID]*session.Controller
}

func New(config *config.Config, database *db.DB) (*Bot, error) {
	sess, err := discordgo.New("Bot " + config.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	sess.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages

	requiredPermissions := int64(
		discordgo.PermissionViewChannel |
			discordgo.PermissionSendMessages |
			discordgo.PermissionReadMessageHistory |
			discordgo.PermissionUseSlashCommands)

	config.Discord.Permissions = requiredPermissions

	return &Bot{
		db:          database,
		session:     sess,
		config:      config,
		projects:    newProjectCache(database),
		shutdownCh:  make(chan struct{}),
		controllers: make(map[uuid.UUID]*session.Controller),
	}, nil
}

// controllerFor returns the employee's session controller, creating it on
// first use.
func (b *Bot) controllerFor(employeeID uuid.UUID) *session.Controller {
	b.ctrlMu.Lock()
	defer b.ctrlMu.Unlock()
	ctrl, ok := b.controllers[employeeID]
	if !ok {
		ctrl = session.NewController(b.db)
		b.controllers[employeeID] = ctrl
	}
	return ctrl
}

// Helper function to register commands for a guild
func (b *Bot) registerGuildCommands(guildID string) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := b.registerGuildCommandsOnce(guildID)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Printf("Attempt %d to register commands failed: %v", i+1, err)
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed to register commands after %d attempts: %v", maxRetries, lastErr)
}

func (b *Bot) registerGuildCommandsOnce(guildID string) error {
	serverName := getServerName(b.session, guildID)

	log.Printf(formatLogMessage(guildID, "Registering commands", "BOT", serverName))

	existing, err := b.session.ApplicationCommands(b.config.Discord.ClientID, guildID)
	if err != nil {
		return fmt.Errorf("error getting existing commands: %w", err)
	}

	for _, v := range existing {
		if err := b.session.ApplicationCommandDelete(b.config.Discord.ClientID, guildID, v.ID); err != nil {
			log.Printf(formatLogMessage(
				guildID,
				fmt.Sprintf("%s: Failed to delete command (%v)", v.Name, err),
				"BOT",
				serverName,
			))
		}
	}

	for _, v := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.config.Discord.ClientID, guildID, v); err != nil {
			return fmt.Errorf("error creating command %s: %w", v.Name, err)
		}
		log.Printf(formatLogMessage(
			guildID,
			fmt.Sprintf("%s: Registered command", v.Name),
			"BOT",
			serverName,
		))
	}

	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.Println("Starting timeclock...")

	for {
		if _, err := b.session.User("@me"); err != nil {
			log.Printf("Failed to connect to Discord API: %v. Retrying in 5 seconds...", err)
			time.Sleep(5 * time.Second)
			continue
		}
		break
	}

	for {
		if err := b.session.Open(); err != nil {
			log.Printf("Error opening Discord session: %v. Retrying in 5 seconds...", err)
			time.Sleep(5 * time.Second)
			continue
		}
		log.Printf("Session opened successfully (Session ID: %s)", b.session.State.SessionID)
		break
	}

	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			b.handleCommand(s, i)
		case discordgo.InteractionApplicationCommandAutocomplete:
			b.handleAutocomplete(s, i)
		}
	})

	for _, guild := range b.session.State.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			log.Printf("Error registering commands for guild %s: %v", guild.ID, err)
		}
	}

	b.session.AddHandler(b.handleGuildCreate)

	log.Println("Bot is now running. Press CTRL-C to exit.")

	<-ctx.Done()
	return b.Shutdown()
}

// Shutdown performs a graceful shutdown of the bot
func (b *Bot) Shutdown() error {
	log.Println("Initiating graceful shutdown...")

	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		return nil
	}
	b.isShutdown = true
	close(b.shutdownCh)
	b.mu.Unlock()

	log.Println("Waiting for active handlers to complete...")
	b.wg.Wait()

	for _, guild := range b.session.State.Guilds {
		serverName := getServerName(b.session, guild.ID)

		registeredCommands, err := b.session.ApplicationCommands(b.config.Discord.ClientID, guild.ID)
		if err != nil {
			log.Printf(formatLogMessage(guild.ID, fmt.Sprintf("Error getting commands: %v", err), "BOT", serverName))
			continue
		}
		for _, cmd := range registeredCommands {
			if err := b.session.ApplicationCommandDelete(b.config.Discord.ClientID, guild.ID, cmd.ID); err != nil {
				log.Printf(formatLogMessage(guild.ID, fmt.Sprintf("%s: Failed to remove command (%v)", cmd.Name, err), "BOT", serverName))
			}
		}
	}

	log.Println("Closing Discord session...")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}

	log.Println("Closing database connection...")
	b.db.Close()

	log.Println("Shutdown completed successfully")
	return nil
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("Bot is ready! Connected to %d guilds", len(r.Guilds))
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Printf(formatLogMessage(g.ID, "Bot joined new guild", "BOT", g.Name))

	if err := b.registerGuildCommands(g.ID); err != nil {
		log.Printf(formatLogMessage(g.ID, fmt.Sprintf("Error registering commands: %v", err), "BOT", g.Name))
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			var username string
			if i.Member != nil && i.Member.User != nil {
				username = i.Member.User.Username
			} else if i.User != nil {
				username = i.User.Username
			} else {
				username = "unknown"
			}

			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Printf("Panic in command handler for user %s:\nError: %v\nStack Trace:\n%s",
				username, r, string(buf[:n]))

			respondWithError(s, i, "An internal error occurred")
		}
	}()

	commandName := i.ApplicationCommandData().Name

	if i.GuildID == "" {
		respondWithError(s, i, fmt.Sprintf("The `/%s` command can only be used in a server", commandName))
		return
	}

	switch commandName {
	case "start":
		b.handleStart(s, i)
	case "pause":
		b.handlePause(s, i)
	case "stop":
		b.handleStop(s, i)
	case "status":
		b.handleStatus(s, i)
	case "declare":
		b.handleDeclare(s, i)
	case "entries":
		b.handleEntries(s, i)
	case "report":
		b.handleReport(s, i)
	case "submit":
		b.handleSubmit(s, i)
	case "customer":
		b.handleCustomer(s, i)
	case "project":
		b.handleProject(s, i)
	case "undo":
		b.handleUndo(s, i)
	case "team":
		b.handleTeam(s, i)
	case "grant":
		b.handleGrant(s, i)
	default:
		log.Printf(formatLogMessage(i.GuildID, "Unknown command: "+commandName, "", ""))
		respondWithError(s, i, "Unknown command")
	}
}
