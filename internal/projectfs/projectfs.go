// Package projectfs creates the on-disk folder scaffold for new projects.
package projectfs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// folderTemplate is the fixed sub-folder layout created under every project.
var folderTemplate = []string{
	"01_Management/01_Clarification",
	"01_Management/02_Requests/01_Incoming_Quotes",
	"01_Management/02_Requests/02_Own_Requests",
	"01_Management/03_Offer",
	"01_Management/04_Orders",
	"01_Management/05_Delivery_Notes",
	"01_Management/06_Contract",
	"01_Management/07_Schedule",
	"01_Management/08_Correspondence",
	"01_Management/09_Meetings/01_Minutes",
	"01_Management/10_Photos",
	"02_Engineering/01_CAD",
	"02_Engineering/02_Software",
	"02_Engineering/03_Calculations",
	"03_Commercial/01_Invoices/01_Incoming",
	"03_Commercial/01_Invoices/02_Outgoing",
	"99_Archive",
}

var slugRe = regexp.MustCompile(`[^\w]+`)

// Slugify turns "New Controls V2.0" into "New_Controls_V2_0", safe for
// folder names.
func Slugify(text string) string {
	text = strings.TrimSpace(text)
	text = slugRe.ReplaceAllString(text, "_")
	return strings.Trim(text, "_")
}

// CreateProjectFolders creates the scaffold
// <baseDir>/<year>/<title>_<customer>_<year><seq> and returns its root.
// The sequence number is one past the highest-numbered existing folder of
// the year, so deleted projects never cause duplicate codes.
func CreateProjectFolders(baseDir, customerCompany, projectTitle string) (string, error) {
	year := time.Now().Year()
	yearDir := filepath.Join(baseDir, fmt.Sprintf("%d", year))
	if err := os.MkdirAll(yearDir, 0o755); err != nil {
		return "", fmt.Errorf("creating year folder: %w", err)
	}

	seq, err := nextSequence(yearDir, year)
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%d%03d", year, seq)

	folderName := fmt.Sprintf("%s_%s_%s", Slugify(projectTitle), Slugify(customerCompany), code)
	root := filepath.Join(yearDir, folderName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating project folder: %w", err)
	}

	for _, rel := range folderTemplate {
		if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", rel, err)
		}
	}
	return root, nil
}

var codeRe = regexp.MustCompile(`_(\d{4})(\d{3})$`)

func nextSequence(yearDir string, year int) (int, error) {
	dirEntries, err := os.ReadDir(yearDir)
	if err != nil {
		return 0, err
	}

	highest := 0
	prefix := fmt.Sprintf("%d", year)
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		m := codeRe.FindStringSubmatch(de.Name())
		if m == nil || m[1] != prefix {
			continue
		}
		var n int
		fmt.Sscanf(m[2], "%d", &n)
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
