package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"timeclock/internal/clock"
	"timeclock/internal/db"
	"timeclock/internal/db/models"
	"timeclock/internal/report"

	"github.com/bwmarrin/discordgo"
)

// reportScope is the common input of /entries and /report: a resolved date
// range and the employee being looked at.
type reportScope struct {
	rng      report.Range
	mode     report.Mode
	employee *models.Employee
}

func (b *Bot) resolveReportScope(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) (*reportScope, error) {
	opts := optionMap(i.ApplicationCommandData().Options)

	caller, err := b.employeeFromInteraction(ctx, i)
	if err != nil {
		return nil, fmt.Errorf("could not look you up")
	}

	employee := caller
	if opt, ok := opts["employee"]; ok {
		target := opt.UserValue(s)
		if target != nil && target.ID != caller.DiscordID {
			if !isAdmin(i, caller) {
				return nil, fmt.Errorf("you need admin permissions to look at other employees")
			}
			employee, err = b.db.GetOrCreateEmployee(ctx, target.ID, target.Username)
			if err != nil {
				return nil, fmt.Errorf("could not look up that employee")
			}
		}
	}

	mode := report.ModeWeek
	if opt, ok := opts["range"]; ok {
		mode = report.Mode(opt.StringValue())
	}

	anchor := time.Now()
	if opt, ok := opts["date"]; ok {
		anchor, err = time.Parse("2006-01-02", opt.StringValue())
		if err != nil {
			return nil, fmt.Errorf("date must be YYYY-MM-DD")
		}
	}

	rng, err := report.Resolve(mode, anchor)
	if err != nil {
		return nil, err
	}
	return &reportScope{rng: rng, mode: mode, employee: employee}, nil
}

func (b *Bot) handleEntries(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	scope, err := b.resolveReportScope(ctx, s, i)
	if err != nil {
		respondWithError(s, i, err.Error())
		return
	}

	entries, err := b.db.EntriesInRange(ctx, scope.rng.From, scope.rng.To,
		db.EntryFilter{EmployeeID: &scope.employee.ID})
	if err != nil {
		logCommandError(i, scope.employee.Username, "entries", err)
		respondWithError(s, i, "Could not load the entries")
		return
	}
	if len(entries) == 0 {
		respondWithSuccess(s, i, fmt.Sprintf("No entries for **%s** between %s and %s.",
			scope.employee.Username, scope.rng.From.Format("2006-01-02"), scope.rng.To.Format("2006-01-02")))
		return
	}

	projectNames := b.projectNames(ctx, entries)

	rows := make([][]string, 0, len(entries))
	var total float64
	for _, e := range entries {
		end := "-"
		if e.End != nil {
			end = clock.FormatDisplay(*e.End)
		}
		dur := "open"
		if hours, ok := e.Hours(); ok {
			dur = formatHours(hours)
			total += hours
		}
		rows = append(rows, []string{
			e.Date.Format("01-02"),
			clock.FormatDisplay(e.Start),
			end,
			truncateString(projectNames[e], 20),
			truncateString(activityLabel(e), 15),
			dur,
		})
	}
	table := formatTable([]string{"Date", "Start", "End", "Project", "Activity", "Hours"}, rows)

	respondWithSuccess(s, i, fmt.Sprintf("Entries for **%s** (%s to %s), total %s:\n```\n%s```",
		scope.employee.Username,
		scope.rng.From.Format("2006-01-02"), scope.rng.To.Format("2006-01-02"),
		formatHours(total), table))
}

func (b *Bot) handleReport(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	opts := optionMap(i.ApplicationCommandData().Options)

	scope, err := b.resolveReportScope(ctx, s, i)
	if err != nil {
		respondWithError(s, i, err.Error())
		return
	}

	entries, err := b.db.EntriesInRange(ctx, scope.rng.From, scope.rng.To,
		db.EntryFilter{EmployeeID: &scope.employee.ID})
	if err != nil {
		logCommandError(i, scope.employee.Username, "report", err)
		respondWithError(s, i, "Could not load the entries")
		return
	}
	if len(entries) == 0 {
		respondWithSuccess(s, i, fmt.Sprintf("Nothing to report for **%s** between %s and %s.",
			scope.employee.Username, scope.rng.From.Format("2006-01-02"), scope.rng.To.Format("2006-01-02")))
		return
	}

	projectNames := b.projectNames(ctx, entries)
	nameByID := make(map[string]string)
	for e, name := range projectNames {
		if e.ProjectID != nil {
			nameByID[e.ProjectID.String()] = name
		}
	}

	totals := report.TotalsByProjectActivity(entries)
	buckets := make([]report.Bucket, 0, len(totals))
	for bucket := range totals {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(a, b int) bool {
		if buckets[a].Project != buckets[b].Project {
			return buckets[a].Project < buckets[b].Project
		}
		return buckets[a].Activity < buckets[b].Activity
	})

	rows := make([][]string, 0, len(buckets))
	var total float64
	for _, bucket := range buckets {
		project := bucket.Project
		if name, ok := nameByID[project]; ok {
			project = name
		}
		rows = append(rows, []string{
			truncateString(project, 25),
			truncateString(bucket.Activity, 20),
			formatHours(totals[bucket]),
		})
		total += totals[bucket]
	}
	table := formatTable([]string{"Project", "Activity", "Hours"}, rows)

	content := fmt.Sprintf("Report for **%s** (%s, %s to %s), total %s:\n```\n%s```",
		scope.employee.Username, scope.mode,
		scope.rng.From.Format("2006-01-02"), scope.rng.To.Format("2006-01-02"),
		formatHours(total), table)

	caller, _ := b.employeeFromInteraction(ctx, i)
	wantExport := false
	if opt, ok := opts["export"]; ok {
		wantExport = opt.BoolValue()
	}
	if wantExport && !isAdmin(i, caller) {
		respondWithError(s, i, "You need admin permissions to export")
		return
	}

	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "✅ " + content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
	if wantExport {
		csvData, err := entriesCSV(entries, projectNames)
		if err != nil {
			respondWithError(s, i, "Could not build the CSV export")
			return
		}
		response.Data.Files = []*discordgo.File{
			{
				Name:        fmt.Sprintf("report_%s_%s.csv", scope.employee.Username, scope.rng.From.Format("2006-01-02")),
				ContentType: "text/csv",
				Reader:      bytes.NewReader(csvData),
			},
		}
	}
	if err := s.InteractionRespond(i.Interaction, response); err != nil {
		logCommandError(i, scope.employee.Username, "report", err)
	}
}

// projectNames looks up project titles for display, one query per distinct
// project.
func (b *Bot) projectNames(ctx context.Context, entries []*models.TimeEntry) map[*models.TimeEntry]string {
	titles := make(map[string]string)
	names := make(map[*models.TimeEntry]string, len(entries))
	for _, e := range entries {
		if e.ProjectID == nil {
			names[e] = "-"
			continue
		}
		key := e.ProjectID.String()
		title, ok := titles[key]
		if !ok {
			title = key[:8]
			if p, err := b.db.GetProject(ctx, *e.ProjectID); err == nil && p != nil {
				title = p.Title
			}
			titles[key] = title
		}
		names[e] = title
	}
	return names
}

func activityLabel(e *models.TimeEntry) string {
	if e.Activity == "" {
		return "-"
	}
	return e.Activity
}

func entriesCSV(entries []*models.TimeEntry, projectNames map[*models.TimeEntry]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Date", "Start", "End", "Project", "Activity", "Details", "Break (min)", "Hours", "Source", "Submitted"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, e := range entries {
		end := ""
		if e.End != nil {
			end = clock.FormatDisplay(*e.End)
		}
		breakMin := ""
		if e.BreakMin != nil {
			breakMin = strconv.Itoa(*e.BreakMin)
		}
		hours := ""
		if h, ok := e.Hours(); ok {
			hours = strconv.FormatFloat(h, 'f', 2, 64)
		}
		record := []string{
			e.Date.Format("2006-01-02"),
			clock.FormatDisplay(e.Start),
			end,
			projectNames[e],
			e.Activity,
			e.Details,
			breakMin,
			hours,
			e.Source,
			strconv.FormatBool(e.Submitted),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
