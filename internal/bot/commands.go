package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"timeclock/internal/clock"
	"timeclock/internal/db"
	"timeclock/internal/db/models"
	"timeclock/internal/projectfs"
	"timeclock/internal/session"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// Permission for admin commands (Manage Server permission)
var adminPermission = int64(discordgo.PermissionManageServer)

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "start",
		Description: "Start the clock on a project",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "project",
				Description:  "Project to book on",
				Required:     true,
				Autocomplete: true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "activity",
				Description: "What you are doing (e.g. Development, Meeting)",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "time",
				Description: "Start time HH:MM (defaults to now)",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "details",
				Description: "Free-form notes",
				Required:    false,
			},
		},
	},
	{
		Name:        "pause",
		Description: "Toggle break: pause while working, finish the break while paused",
	},
	{
		Name:        "stop",
		Description: "Stop the clock and close the running entry",
	},
	{
		Name:        "status",
		Description: "Show your clock status",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "everyone",
				Description: "Show all running entries (admin)",
				Required:    false,
			},
		},
	},
	{
		Name:        "declare",
		Description: "Record a finished work interval after the fact",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "project",
				Description:  "Project to book on",
				Required:     true,
				Autocomplete: true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "start",
				Description: "Start time HH:MM",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "end",
				Description: "End time HH:MM",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "date",
				Description: "Date YYYY-MM-DD (defaults to today)",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "break",
				Description: "Unpaid break in minutes",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "activity",
				Description: "What you did",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "details",
				Description: "Free-form notes",
				Required:    false,
			},
		},
	},
	{
		Name:        "entries",
		Description: "List your time entries",
		Options: []*discordgo.ApplicationCommandOption{
			rangeOption(),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "date",
				Description: "Anchor date YYYY-MM-DD (defaults to today)",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "employee",
				Description: "Another employee (admin)",
				Required:    false,
			},
		},
	},
	{
		Name:        "report",
		Description: "Hours per project and activity over a period",
		Options: []*discordgo.ApplicationCommandOption{
			rangeOption(),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "date",
				Description: "Anchor date YYYY-MM-DD (defaults to today)",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "employee",
				Description: "Another employee (admin)",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "export",
				Description: "Attach the entries as CSV (admin)",
				Required:    false,
			},
		},
	},
	{
		Name:        "submit",
		Description: "Mark your finished entries as submitted",
	},
	{
		Name:        "customer",
		Description: "Manage customers",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a customer",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "company",
						Description: "Company name",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "contact",
						Description: "Contact person",
						Required:    false,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "email",
						Description: "Contact email",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List customers",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a customer without projects or entries",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionString,
						Name:         "customer",
						Description:  "Customer to remove",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
		},
	},
	{
		Name:        "project",
		Description: "Manage projects",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a project",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionString,
						Name:         "customer",
						Description:  "Customer the project belongs to",
						Required:     true,
						Autocomplete: true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "title",
						Description: "Project title",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "description",
						Description: "Short description",
						Required:    false,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "tags",
						Description: "Comma-separated tags",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List open projects",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a project without time entries",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionString,
						Name:         "project",
						Description:  "Project to remove",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
		},
	},
	{
		Name:        "undo",
		Description: "Delete your most recent entry of today",
	},
	{
		Name:                     "team",
		Description:              "List employees and their permissions (admin)",
		DefaultMemberPermissions: &adminPermission,
	},
	{
		Name:                     "grant",
		Description:              "Change an employee's permissions (admin)",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "employee",
				Description: "Employee to change",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "admin",
				Description: "Admin flag",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "manage_projects",
				Description: "May create customers and projects",
				Required:    false,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "see_customers",
				Description: "May see the customer list",
				Required:    false,
			},
		},
	},
}

func rangeOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "range",
		Description: "Period around the anchor date",
		Required:    false,
		Choices: []*discordgo.ApplicationCommandOptionChoice{
			{Name: "Day", Value: "day"},
			{Name: "Week", Value: "week"},
			{Name: "Month", Value: "month"},
			{Name: "Year", Value: "year"},
		},
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// employeeFromInteraction resolves (creating if needed) the employee record
// for the invoking Discord user.
func (b *Bot) employeeFromInteraction(ctx context.Context, i *discordgo.InteractionCreate) (*models.Employee, error) {
	user := getCommandUser(i)
	if user == nil {
		return nil, fmt.Errorf("no user on interaction")
	}
	return b.db.GetOrCreateEmployee(ctx, user.ID, user.Username)
}

func (b *Bot) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	opts := optionMap(i.ApplicationCommandData().Options)

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		log.Printf(formatLogMessage(i.GuildID, fmt.Sprintf("Error resolving employee: %v", err), "", ""))
		respondWithError(s, i, "Could not look you up")
		return
	}

	project, err := b.resolveProjectOption(ctx, opts["project"])
	if err != nil {
		respondWithError(s, i, err.Error())
		return
	}

	params := session.StartParams{
		EmployeeID: employee.ID,
		ProjectID:  &project.ID,
		CustomerID: &project.CustomerID,
	}
	if opt, ok := opts["activity"]; ok {
		params.Activity = opt.StringValue()
	}
	if opt, ok := opts["time"]; ok {
		params.StartAt = opt.StringValue()
	}
	if opt, ok := opts["details"]; ok {
		params.Details = opt.StringValue()
	}

	belief, err := b.controllerFor(employee.ID).Start(ctx, params)
	switch {
	case errors.Is(err, session.ErrSessionAlreadyOpen):
		respondWithError(s, i, "You already have a running entry. Use `/stop` or `/pause` first.")
		return
	case errors.Is(err, session.ErrInvalidInput):
		respondWithError(s, i, err.Error())
		return
	case err != nil:
		logCommandError(i, employee.Username, "start", err)
		respondWithError(s, i, "Could not start the clock")
		return
	}

	logCommand(i, employee.Username, fmt.Sprintf("started on %s at %s", project.Title, belief.Start))
	respondWithSuccess(s, i, fmt.Sprintf("Clocked in on **%s** at %s",
		project.Title, clock.FormatDisplay(belief.Start)))
}

func (b *Bot) handlePause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}

	state, err := b.controllerFor(employee.ID).Pause(ctx, employee.ID)
	switch {
	case errors.Is(err, session.ErrNoOpenSession):
		respondWithError(s, i, "Nothing is running. Use `/start` first.")
		return
	case err != nil:
		logCommandError(i, employee.Username, "pause", err)
		respondWithError(s, i, "Could not toggle the break")
		return
	}

	logCommand(i, employee.Username, "pause -> "+state.String())
	switch state {
	case session.StateOnBreak:
		respondWithSuccess(s, i, "Break started. `/pause` again to end it, then `/start` to resume work.")
	default:
		respondWithSuccess(s, i, "Break finished. Use `/start` to resume work.")
	}
}

func (b *Bot) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}

	err = b.controllerFor(employee.ID).Stop(ctx, employee.ID)
	switch {
	case errors.Is(err, session.ErrNoOpenSession):
		respondWithError(s, i, "Nothing is running.")
		return
	case err != nil:
		logCommandError(i, employee.Username, "stop", err)
		respondWithError(s, i, "Could not stop the clock")
		return
	}

	logCommand(i, employee.Username, "stopped")
	respondWithSuccess(s, i, "Clocked out.")
}

func (b *Bot) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	opts := optionMap(i.ApplicationCommandData().Options)

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}

	if opt, ok := opts["everyone"]; ok && opt.BoolValue() {
		if !isAdmin(i, employee) {
			respondWithError(s, i, "You need admin permissions to see everyone's status")
			return
		}
		b.respondStatusEveryone(ctx, s, i)
		return
	}

	ctrl := b.controllerFor(employee.ID)
	state, err := ctrl.Reconcile(ctx, employee.ID)
	if err != nil {
		logCommandError(i, employee.Username, "status", err)
		respondWithError(s, i, "Could not read your status")
		return
	}

	switch state {
	case session.StateNoSession:
		respondWithSuccess(s, i, "No entry is running.")
	default:
		belief := ctrl.Belief()
		label := "Working"
		if state == session.StateOnBreak {
			label = "On break"
		}
		onProject := ""
		if belief.ProjectID != nil {
			if p, err := b.db.GetProject(ctx, *belief.ProjectID); err == nil && p != nil {
				onProject = " on **" + p.Title + "**"
			}
		}
		respondWithSuccess(s, i, fmt.Sprintf("%s%s since %s",
			label, onProject, clock.FormatDisplay(belief.Start)))
	}
}

func (b *Bot) respondStatusEveryone(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	open, err := b.db.ListOpenEntries(ctx)
	if err != nil {
		respondWithError(s, i, "Could not list running entries")
		return
	}
	if len(open) == 0 {
		respondWithSuccess(s, i, "No entries are running.")
		return
	}

	rows := make([][]string, 0, len(open))
	for _, info := range open {
		activity := info.Entry.Activity
		if activity == "" {
			activity = "-"
		}
		rows = append(rows, []string{
			truncateString(info.Username, 20),
			activity,
			clock.FormatDisplay(info.Entry.Start),
		})
	}
	table := formatTable([]string{"Employee", "Activity", "Since"}, rows)
	respondWithSuccess(s, i, "Running entries:\n```\n"+table+"```")
}

func (b *Bot) handleDeclare(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	opts := optionMap(i.ApplicationCommandData().Options)

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}

	project, err := b.resolveProjectOption(ctx, opts["project"])
	if err != nil {
		respondWithError(s, i, err.Error())
		return
	}

	startMin, ok := clock.ToMinutes(opts["start"].StringValue())
	if !ok {
		respondWithError(s, i, "Start time must be HH:MM")
		return
	}
	endMin, ok := clock.ToMinutes(opts["end"].StringValue())
	if !ok {
		respondWithError(s, i, "End time must be HH:MM")
		return
	}
	if endMin < startMin {
		respondWithError(s, i, "End time is before start time")
		return
	}

	date := time.Now()
	if opt, ok := opts["date"]; ok {
		date, err = time.Parse("2006-01-02", opt.StringValue())
		if err != nil {
			respondWithError(s, i, "Date must be YYYY-MM-DD")
			return
		}
	}

	entry := &models.TimeEntry{
		EmployeeID: employee.ID,
		CustomerID: &project.CustomerID,
		ProjectID:  &project.ID,
		Date:       date,
		Start:      clock.Stamp(startMin),
		Source:     "declare",
	}
	end := clock.Stamp(endMin)
	entry.End = &end
	if opt, ok := opts["break"]; ok {
		breakMin := int(opt.IntValue())
		if breakMin < 0 {
			respondWithError(s, i, "Break minutes cannot be negative")
			return
		}
		entry.BreakMin = &breakMin
	}
	if opt, ok := opts["activity"]; ok {
		entry.Activity = opt.StringValue()
	}
	if opt, ok := opts["details"]; ok {
		entry.Details = opt.StringValue()
	}

	created, err := b.db.CreateEntry(ctx, entry)
	switch {
	case errors.Is(err, db.ErrOverlap):
		respondWithError(s, i, "That interval overlaps an existing entry on the same day")
		return
	case err != nil:
		logCommandError(i, employee.Username, "declare", err)
		respondWithError(s, i, "Could not record the entry")
		return
	}

	hours, _ := created.Hours()
	logCommand(i, employee.Username, fmt.Sprintf("declared %s on %s", formatHours(hours), project.Title))
	respondWithSuccess(s, i, fmt.Sprintf("Recorded **%s** on **%s** (%s)",
		formatHours(hours), project.Title, created.Date.Format("2006-01-02")))
}

func (b *Bot) handleSubmit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}

	count, err := b.db.SubmitOpenEntries(ctx, employee.ID)
	if err != nil {
		logCommandError(i, employee.Username, "submit", err)
		respondWithError(s, i, "Could not submit your entries")
		return
	}
	if count == 0 {
		respondWithSuccess(s, i, "Nothing to submit.")
		return
	}

	logCommand(i, employee.Username, fmt.Sprintf("submitted %d entries", count))
	respondWithSuccess(s, i, fmt.Sprintf("Submitted %d entries.", count))
}

func (b *Bot) handleCustomer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respondWithError(s, i, "Missing subcommand")
		return
	}
	sub := data.Options[0]

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}
	if !employee.CanManageProjects && !isAdmin(i, employee) {
		respondWithError(s, i, "You need project management permissions for this")
		return
	}

	switch sub.Name {
	case "add":
		opts := optionMap(sub.Options)
		customer := &models.Customer{Company: opts["company"].StringValue()}
		if opt, ok := opts["contact"]; ok {
			customer.ContactPerson = opt.StringValue()
		}
		if opt, ok := opts["email"]; ok {
			customer.Email = opt.StringValue()
		}
		if err := b.db.CreateCustomer(ctx, customer); err != nil {
			logCommandError(i, employee.Username, "customer add", err)
			respondWithError(s, i, "Could not create the customer")
			return
		}
		logCommand(i, employee.Username, "added customer "+customer.Company)
		respondWithSuccess(s, i, fmt.Sprintf("Customer **%s** created", customer.Company))

	case "list":
		customers, err := b.db.ListCustomers(ctx)
		if err != nil {
			respondWithError(s, i, "Could not list customers")
			return
		}
		if len(customers) == 0 {
			respondWithSuccess(s, i, "No customers yet.")
			return
		}
		rows := make([][]string, 0, len(customers))
		for _, c := range customers {
			rows = append(rows, []string{
				truncateString(c.Company, 30),
				truncateString(c.ContactPerson, 20),
				truncateString(c.Email, 30),
			})
		}
		table := formatTable([]string{"Company", "Contact", "Email"}, rows)
		respondWithSuccess(s, i, "Customers:\n```\n"+table+"```")

	case "remove":
		opts := optionMap(sub.Options)
		customer, err := b.resolveCustomerOption(ctx, opts["customer"])
		if err != nil {
			respondWithError(s, i, err.Error())
			return
		}
		err = b.db.DeleteCustomer(ctx, customer.ID)
		switch {
		case errors.Is(err, db.ErrInUse):
			respondWithError(s, i, "That customer still has projects or time entries")
			return
		case err != nil:
			logCommandError(i, employee.Username, "customer remove", err)
			respondWithError(s, i, "Could not remove the customer")
			return
		}
		logCommand(i, employee.Username, "removed customer "+customer.Company)
		respondWithSuccess(s, i, fmt.Sprintf("Customer **%s** removed", customer.Company))

	default:
		respondWithError(s, i, "Unknown subcommand")
	}
}

func (b *Bot) handleProject(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respondWithError(s, i, "Missing subcommand")
		return
	}
	sub := data.Options[0]

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}

	switch sub.Name {
	case "add":
		if !employee.CanManageProjects && !isAdmin(i, employee) {
			respondWithError(s, i, "You need project management permissions for this")
			return
		}
		opts := optionMap(sub.Options)

		customer, err := b.resolveCustomerOption(ctx, opts["customer"])
		if err != nil {
			respondWithError(s, i, err.Error())
			return
		}

		project := &models.Project{
			CustomerID: customer.ID,
			Title:      opts["title"].StringValue(),
		}
		if opt, ok := opts["description"]; ok {
			project.Description = opt.StringValue()
		}
		if opt, ok := opts["tags"]; ok {
			for _, tag := range strings.Split(opt.StringValue(), ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					project.Tags = append(project.Tags, tag)
				}
			}
		}

		if err := b.db.CreateProject(ctx, project); err != nil {
			logCommandError(i, employee.Username, "project add", err)
			respondWithError(s, i, "Could not create the project")
			return
		}
		b.projects.invalidate()

		path, err := projectfs.CreateProjectFolders(b.config.Projects.BaseDir, customer.Company, project.Title)
		if err != nil {
			log.Printf(formatLogMessage(i.GuildID, fmt.Sprintf("Error creating project folders: %v", err), employee.Username, ""))
		} else if err := b.db.SetProjectPath(ctx, project.ID, path); err != nil {
			log.Printf(formatLogMessage(i.GuildID, fmt.Sprintf("Error saving project path: %v", err), employee.Username, ""))
		}

		logCommand(i, employee.Username, "added project "+project.Title)
		respondWithSuccess(s, i, fmt.Sprintf("Project **%s** created for **%s**", project.Title, customer.Company))

	case "list":
		if !employee.CanSeeCustomersProjects && !employee.CanManageProjects && !isAdmin(i, employee) {
			respondWithError(s, i, "You are not allowed to see the project list")
			return
		}
		projects, err := b.projects.get(ctx)
		if err != nil {
			respondWithError(s, i, "Could not list projects")
			return
		}
		if len(projects) == 0 {
			respondWithSuccess(s, i, "No open projects.")
			return
		}
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, []string{
				truncateString(p.Title, 30),
				truncateString(p.CustomerCompany, 25),
				truncateString(strings.Join(p.Tags, ","), 20),
			})
		}
		table := formatTable([]string{"Project", "Customer", "Tags"}, rows)
		respondWithSuccess(s, i, "Open projects:\n```\n"+table+"```")

	case "remove":
		if !employee.CanManageProjects && !isAdmin(i, employee) {
			respondWithError(s, i, "You need project management permissions for this")
			return
		}
		opts := optionMap(sub.Options)
		project, err := b.resolveProjectOption(ctx, opts["project"])
		if err != nil {
			respondWithError(s, i, err.Error())
			return
		}
		err = b.db.DeleteProject(ctx, project.ID)
		switch {
		case errors.Is(err, db.ErrInUse):
			respondWithError(s, i, "That project still has time entries booked on it")
			return
		case err != nil:
			logCommandError(i, employee.Username, "project remove", err)
			respondWithError(s, i, "Could not remove the project")
			return
		}
		b.projects.invalidate()
		logCommand(i, employee.Username, "removed project "+project.Title)
		respondWithSuccess(s, i, fmt.Sprintf("Project **%s** removed", project.Title))

	default:
		respondWithError(s, i, "Unknown subcommand")
	}
}

// handleUndo deletes the caller's most recent entry of today, running or
// closed, as long as it has not been submitted.
func (b *Bot) handleUndo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	employee, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	entries, err := b.db.EntriesInRange(ctx, today, today, db.EntryFilter{EmployeeID: &employee.ID})
	if err != nil {
		logCommandError(i, employee.Username, "undo", err)
		respondWithError(s, i, "Could not load today's entries")
		return
	}

	var last *models.TimeEntry
	for _, e := range entries {
		if e.Submitted {
			continue
		}
		last = e
	}
	if last == nil {
		respondWithError(s, i, "No entry of today left to undo")
		return
	}

	if err := b.db.DeleteEntry(ctx, last.ID); err != nil {
		logCommandError(i, employee.Username, "undo", err)
		respondWithError(s, i, "Could not delete the entry")
		return
	}

	what := "entry from " + clock.FormatDisplay(last.Start)
	if last.IsOpen() {
		what = "running " + what
	}
	logCommand(i, employee.Username, "undid "+what)
	respondWithSuccess(s, i, "Deleted the "+what+".")
}

func (b *Bot) handleTeam(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	caller, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}
	if !isAdmin(i, caller) {
		respondWithError(s, i, "You need admin permissions for this")
		return
	}

	employees, err := b.db.ListEmployees(ctx)
	if err != nil {
		respondWithError(s, i, "Could not list employees")
		return
	}

	flag := func(v bool) string {
		if v {
			return "yes"
		}
		return "no"
	}
	rows := make([][]string, 0, len(employees))
	for _, e := range employees {
		rows = append(rows, []string{
			truncateString(e.Username, 20),
			flag(e.IsAdmin),
			flag(e.CanManageProjects),
			flag(e.CanSeeCustomersProjects),
			flag(e.Active),
		})
	}
	table := formatTable([]string{"Employee", "Admin", "Projects", "Customers", "Active"}, rows)
	respondWithSuccess(s, i, "Team:\n```\n"+table+"```")
}

func (b *Bot) handleGrant(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	opts := optionMap(i.ApplicationCommandData().Options)

	caller, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		respondWithError(s, i, "Could not look you up")
		return
	}
	if !isAdmin(i, caller) {
		respondWithError(s, i, "You need admin permissions for this")
		return
	}

	target := opts["employee"].UserValue(s)
	if target == nil {
		respondWithError(s, i, "Could not resolve that user")
		return
	}
	employee, err := b.db.GetOrCreateEmployee(ctx, target.ID, target.Username)
	if err != nil {
		respondWithError(s, i, "Could not look up that employee")
		return
	}

	isAdminFlag := employee.IsAdmin
	manageProjects := employee.CanManageProjects
	seeCustomers := employee.CanSeeCustomersProjects
	if opt, ok := opts["admin"]; ok {
		isAdminFlag = opt.BoolValue()
	}
	if opt, ok := opts["manage_projects"]; ok {
		manageProjects = opt.BoolValue()
	}
	if opt, ok := opts["see_customers"]; ok {
		seeCustomers = opt.BoolValue()
	}

	if err := b.db.UpdateEmployeeFlags(ctx, employee.ID, isAdminFlag, manageProjects, seeCustomers); err != nil {
		logCommandError(i, caller.Username, "grant", err)
		respondWithError(s, i, "Could not update permissions")
		return
	}

	logCommand(i, caller.Username, fmt.Sprintf("grant %s: admin=%v manage=%v see=%v",
		target.Username, isAdminFlag, manageProjects, seeCustomers))
	respondWithSuccess(s, i, fmt.Sprintf("Updated **%s**: admin=%v, manage projects=%v, see customers=%v",
		target.Username, isAdminFlag, manageProjects, seeCustomers))
}

// resolveProjectOption turns an autocomplete project option (a UUID, or a
// typed title as fallback) into a project row.
func (b *Bot) resolveProjectOption(ctx context.Context, opt *discordgo.ApplicationCommandInteractionDataOption) (*models.ProjectWithCustomer, error) {
	if opt == nil {
		return nil, fmt.Errorf("project is required")
	}
	value := opt.StringValue()

	if id, err := uuid.Parse(value); err == nil {
		project, err := b.db.GetProject(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("could not look up the project")
		}
		if project == nil {
			return nil, fmt.Errorf("project not found")
		}
		return project, nil
	}

	projects, err := b.projects.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not look up the project")
	}
	for _, p := range projects {
		if strings.EqualFold(p.Title, value) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no open project named %q", value)
}

func (b *Bot) resolveCustomerOption(ctx context.Context, opt *discordgo.ApplicationCommandInteractionDataOption) (*models.Customer, error) {
	if opt == nil {
		return nil, fmt.Errorf("customer is required")
	}
	value := opt.StringValue()

	customers, err := b.db.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not look up the customer")
	}
	if id, err := uuid.Parse(value); err == nil {
		for _, c := range customers {
			if c.ID == id {
				return c, nil
			}
		}
	}
	for _, c := range customers {
		if strings.EqualFold(c.Company, value) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no customer named %q", value)
}

func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	data := i.ApplicationCommandData()

	var focused *discordgo.ApplicationCommandInteractionDataOption
	options := data.Options
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		options = options[0].Options
	}
	for _, opt := range options {
		if opt.Focused {
			focused = opt
			break
		}
	}
	if focused == nil {
		return
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	typed := strings.ToLower(focused.StringValue())

	switch focused.Name {
	case "project":
		projects, err := b.projects.get(ctx)
		if err != nil {
			log.Printf(formatLogMessage(i.GuildID, fmt.Sprintf("Autocomplete error: %v", err), "", ""))
			return
		}
		for _, p := range projects {
			label := fmt.Sprintf("%s (%s)", p.Title, p.CustomerCompany)
			if typed != "" && !strings.Contains(strings.ToLower(label), typed) {
				continue
			}
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  truncateString(label, 100),
				Value: p.ID.String(),
			})
			if len(choices) == 25 {
				break
			}
		}
	case "customer":
		customers, err := b.db.ListCustomers(ctx)
		if err != nil {
			return
		}
		for _, c := range customers {
			if typed != "" && !strings.Contains(strings.ToLower(c.Company), typed) {
				continue
			}
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  truncateString(c.Company, 100),
				Value: c.ID.String(),
			})
			if len(choices) == 25 {
				break
			}
		}
	default:
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		log.Printf("Error sending autocomplete response: %v", err)
	}
}

func logCommand(i *discordgo.InteractionCreate, username, message string) {
	log.Printf(formatLogMessage(i.GuildID, message, username, ""))
}

func logCommandError(i *discordgo.InteractionCreate, username, command string, err error) {
	log.Printf(formatLogMessage(i.GuildID, fmt.Sprintf("Error in /%s: %v", command, err), username, ""))
}
