// Package export flattens registrations into CSV for organisers.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"teamreg/internal/registration/models"
)

// DateLayout is the registration date format, always rendered in UTC.
const DateLayout = "2006-01-02 15:04:05"

// Header is the fixed column set.
var Header = []string{
	"Registration ID",
	"Team Leader Email",
	"Team Leader Name",
	"Team Leader Level",
	"Number of Members",
	"All Members",
	"Project Field",
	"Project Category",
	"Registration Date",
}

// Write emits the header and one row per registration, in input order.
func Write(w io.Writer, regs []*models.Registration) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, reg := range regs {
		if err := cw.Write(Row(reg)); err != nil {
			return fmt.Errorf("write csv row %s: %w", reg.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Bytes renders the whole export in memory.
func Bytes(regs []*models.Registration) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, regs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Row flattens one registration.
func Row(reg *models.Registration) []string {
	members := slices.Clone(reg.Members)
	slices.SortStableFunc(members, func(a, b models.TeamMember) int { return a.Order - b.Order })

	var leaderName, leaderLevel string
	if leader, ok := reg.Leader(); ok {
		leaderName = leader.Name
		leaderLevel = leader.Level.Label()
	}

	all := make([]string, 0, len(members))
	for _, m := range members {
		all = append(all, fmt.Sprintf("%s (%s)", m.Name, m.Level.Label()))
	}

	return []string{
		reg.ID.String(),
		reg.TeamLeaderEmail,
		leaderName,
		leaderLevel,
		strconv.Itoa(len(members)),
		strings.Join(all, ", "),
		reg.ProjectField.Label(),
		reg.ProjectCategory.Label(),
		reg.RegistrationDate.UTC().Format(DateLayout),
	}
}

// ParsedRow is an exported row read back. Labels stay as rendered.
type ParsedRow struct {
	RegistrationID   string
	TeamLeaderEmail  string
	TeamLeaderName   string
	TeamLeaderLevel  string
	MembersCount     int
	AllMembers       string
	ProjectField     string
	ProjectCategory  string
	RegistrationDate time.Time
}

// ParseRow decodes one exported record.
func ParseRow(record []string) (ParsedRow, error) {
	if len(record) != len(Header) {
		return ParsedRow{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(record))
	}
	count, err := strconv.Atoi(record[4])
	if err != nil {
		return ParsedRow{}, fmt.Errorf("parse member count: %w", err)
	}
	date, err := time.ParseInLocation(DateLayout, record[8], time.UTC)
	if err != nil {
		return ParsedRow{}, fmt.Errorf("parse registration date: %w", err)
	}
	return ParsedRow{
		RegistrationID:   record[0],
		TeamLeaderEmail:  record[1],
		TeamLeaderName:   record[2],
		TeamLeaderLevel:  record[3],
		MembersCount:     count,
		AllMembers:       record[5],
		ProjectField:     record[6],
		ProjectCategory:  record[7],
		RegistrationDate: date,
	}, nil
}

// Read parses a complete export, checking the header.
func Read(r io.Reader) ([]ParsedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 || !slices.Equal(records[0], Header) {
		return nil, fmt.Errorf("missing export header")
	}
	rows := make([]ParsedRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := ParseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
