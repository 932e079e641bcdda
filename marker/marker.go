package marker

import (
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"
)

// Trailer keys are case-sensitive and written one per line.
const (
	commitKey  = "Vanity-Source-Commit: "
	repoKey    = "Source-Repo-Hint: "
	urlKey     = "Source-Commit-URL: "
	dateKey    = "Source-Date: "
	subjectKey = "Source-Subject: "
)

// DefaultSubjectTemplate is the subject line used for mirror commits unless
// overridden. Available variables: {{short}}, {{sha}}, {{repo}}.
const DefaultSubjectTemplate = "Vanity mirror: {{short}}"

const shaHexLen = 40

var (
	// ErrNoMarker signals that a commit message carries no marker trailer
	// at all. This is the normal case for non-mirror commits.
	ErrNoMarker = errors.New("no source-commit marker in message")

	// ErrMalformedMarker signals that a marker key is present but its value
	// is not a valid commit id. Such commits are skipped, never fatal.
	ErrMalformedMarker = errors.New("malformed source-commit marker")
)

// Marker identifies the source commit a mirror commit stands in for.
type Marker struct {
	// RepoHint distinguishes the source repository, usually its origin
	// remote URL, falling back to its canonical path.
	RepoHint string

	// CommitID is the 40-hex lowercase source commit id.
	CommitID string

	// SourceURL is the web URL of the source commit, empty when the
	// hosting platform is not recognized.
	SourceURL string
}

// Details carries informational lines included in the encoded message but
// ignored by Decode.
type Details struct {
	// AuthorDate is the source commit's author timestamp; omitted from
	// the message when zero.
	AuthorDate time.Time

	// Subject is the source commit's summary line; omitted when empty.
	Subject string
}

// Encode renders a full mirror-commit message: a subject line produced from
// subjectTemplate, a blank line, then the marker trailers. The trailer order
// is fixed; Decode does not depend on it.
func Encode(subjectTemplate string, m Marker, d Details) string {
	sha := strings.ToLower(strings.TrimSpace(m.CommitID))

	short := sha
	if len(short) > 12 {
		short = short[:12]
	}

	subject := fasttemplate.ExecuteString(
		subjectTemplate, "{{", "}}",
		map[string]any{
			"short": short,
			"sha":   sha,
			"repo":  m.RepoHint,
		},
	)

	var sb strings.Builder

	sb.WriteString(subject)
	sb.WriteString("\n\n")
	sb.WriteString(commitKey)
	sb.WriteString(sha)
	sb.WriteByte('\n')
	sb.WriteString(repoKey)
	sb.WriteString(m.RepoHint)
	sb.WriteByte('\n')

	if m.SourceURL != "" {
		sb.WriteString(urlKey)
		sb.WriteString(m.SourceURL)
		sb.WriteByte('\n')
	}

	if !d.AuthorDate.IsZero() {
		sb.WriteString(dateKey)
		sb.WriteString(d.AuthorDate.Format(time.RFC3339))
		sb.WriteByte('\n')
	}

	if d.Subject != "" {
		sb.WriteString(subjectKey)
		sb.WriteString(d.Subject)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// Decode extracts the marker from a commit message. It returns ErrNoMarker
// when the message carries no Vanity-Source-Commit line and
// ErrMalformedMarker when the line is present but its value is not a 40-hex
// commit id.
func Decode(message string) (Marker, error) {
	var (
		m     Marker
		found bool
	)

	for _, line := range strings.Split(message, "\n") {
		switch {
		case strings.HasPrefix(line, commitKey):
			if found {
				continue
			}

			sha := strings.ToLower(
				strings.TrimSpace(
					strings.TrimPrefix(line, commitKey),
				),
			)
			if !isCommitID(sha) {
				return Marker{}, ErrMalformedMarker
			}

			m.CommitID = sha
			found = true
		case strings.HasPrefix(line, repoKey):
			if m.RepoHint == "" {
				m.RepoHint = strings.TrimSpace(
					strings.TrimPrefix(line, repoKey),
				)
			}
		case strings.HasPrefix(line, urlKey):
			if m.SourceURL == "" {
				m.SourceURL = strings.TrimSpace(
					strings.TrimPrefix(line, urlKey),
				)
			}
		}
	}

	if !found {
		return Marker{}, ErrNoMarker
	}

	return m, nil
}

// DecodeDetails recovers the informational lines from an encoded message.
// Best effort: absent or unparsable lines leave the zero value, since these
// lines never participate in idempotency detection.
func DecodeDetails(message string) Details {
	var d Details

	for _, line := range strings.Split(message, "\n") {
		switch {
		case strings.HasPrefix(line, dateKey):
			raw := strings.TrimSpace(strings.TrimPrefix(line, dateKey))
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				d.AuthorDate = t
			}
		case strings.HasPrefix(line, subjectKey):
			if d.Subject == "" {
				d.Subject = strings.TrimSpace(
					strings.TrimPrefix(line, subjectKey),
				)
			}
		}
	}

	return d
}

// Subject returns the first line of a commit message.
func Subject(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimRight(message[:i], "\r")
	}

	return message
}

// isCommitID reports whether s is a 40-character lowercase hex string.
func isCommitID(s string) bool {
	if len(s) != shaHexLen {
		return false
	}

	for _, c := range s {
		ok := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !ok {
			return false
		}
	}

	return true
}
