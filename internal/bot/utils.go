package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"timeclock/internal/db"
	"timeclock/internal/db/models"

	"github.com/bwmarrin/discordgo"
)

func formatLogMessage(guildID, message, username, serverName string) string {
	if serverName == "" {
		serverName = "Unknown Server"
	}
	if username != "" {
		return fmt.Sprintf("[%s] [%s] %s: %s", serverName, guildID, username, message)
	}
	return fmt.Sprintf("[%s] [%s] %s", serverName, guildID, message)
}

func getServerName(s *discordgo.Session, guildID string) string {
	guild, err := s.Guild(guildID)
	if err != nil {
		return "Unknown Server"
	}
	return guild.Name
}

func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "❌ " + message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error sending error response: %v", err)
	}
}

func respondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "✅ " + message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error sending success response: %v", err)
	}
}

func getCommandUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// isAdmin reports whether the invoking member may use management commands.
// Guild managers always qualify; everyone else needs the admin flag on
// their employee record.
func isAdmin(i *discordgo.InteractionCreate, employee *models.Employee) bool {
	if employee != nil && employee.IsAdmin {
		return true
	}
	if i.Member != nil && i.Member.Permissions&discordgo.PermissionManageServer != 0 {
		return true
	}
	return false
}

func formatHours(hours float64) string {
	totalMinutes := int(hours*60 + 0.5)
	return fmt.Sprintf("%dh %02dm", totalMinutes/60, totalMinutes%60)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatTable renders rows as a monospace table for a code block.
func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(cell)
			sb.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	for i, w := range widths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

const projectCacheTTL = 30 * time.Second

// projectCache is a read-through cache over the open-project list, used by
// command autocomplete so each keystroke does not hit the database.
type projectCache struct {
	db       *db.DB
	mu       sync.Mutex
	projects []*models.ProjectWithCustomer
	fetched  time.Time
}

func newProjectCache(database *db.DB) *projectCache {
	return &projectCache{db: database}
}

func (c *projectCache) get(ctx context.Context) ([]*models.ProjectWithCustomer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.projects != nil && time.Since(c.fetched) < projectCacheTTL {
		return c.projects, nil
	}
	projects, err := c.db.ListOpenProjects(ctx)
	if err != nil {
		if c.projects != nil {
			return c.projects, nil
		}
		return nil, err
	}
	c.projects = projects
	c.fetched = time.Now()
	return projects, nil
}

func (c *projectCache) invalidate() {
	c.mu.Lock()
	c.projects = nil
	c.mu.Unlock()
}
