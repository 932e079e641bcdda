package marker_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamdman/vanity/marker"
)

const testSHA = "0123456789abcdef0123456789abcdef01234567"

func TestEncode_wire_format(t *testing.T) {
	t.Parallel()

	m := marker.Marker{
		RepoHint:  "git@github.com:acme/widgets.git",
		CommitID:  testSHA,
		SourceURL: "https://github.com/acme/widgets/commit/" + testSHA,
	}

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := marker.Encode(marker.DefaultSubjectTemplate, m, marker.Details{
		AuthorDate: when,
		Subject:    "fix the widget",
	})

	lines := strings.Split(msg, "\n")

	require.GreaterOrEqual(t, len(lines), 7)
	assert.Equal(t, "Vanity mirror: 0123456789ab", lines[0])
	assert.Empty(t, lines[1])
	assert.Equal(t, "Vanity-Source-Commit: "+testSHA, lines[2])
	assert.Equal(
		t, "Source-Repo-Hint: git@github.com:acme/widgets.git", lines[3],
	)
	assert.Equal(t, "Source-Commit-URL: "+m.SourceURL, lines[4])
	assert.Equal(t, "Source-Date: 2024-03-01T12:00:00Z", lines[5])
	assert.Equal(t, "Source-Subject: fix the widget", lines[6])
}

func TestEncode_omits_url_when_absent(t *testing.T) {
	t.Parallel()

	m := marker.Marker{RepoHint: "/tmp/somerepo", CommitID: testSHA}

	msg := marker.Encode(marker.DefaultSubjectTemplate, m, marker.Details{})

	assert.NotContains(t, msg, "Source-Commit-URL:")
	assert.NotContains(t, msg, "Source-Date:")
	assert.NotContains(t, msg, "Source-Subject:")
}

func TestEncode_custom_subject_template(t *testing.T) {
	t.Parallel()

	m := marker.Marker{RepoHint: "acme", CommitID: testSHA}

	msg := marker.Encode("mirror of {{sha}} from {{repo}}", m, marker.Details{})

	assert.Equal(
		t,
		"mirror of "+testSHA+" from acme",
		marker.Subject(msg),
	)
}

func TestDecode_roundtrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    marker.Marker
	}{
		{
			name: "full marker",
			m: marker.Marker{
				RepoHint:  "https://github.com/acme/widgets",
				CommitID:  testSHA,
				SourceURL: "https://github.com/acme/widgets/commit/" + testSHA,
			},
		},
		{
			name: "no url",
			m: marker.Marker{
				RepoHint: "/home/user/src/widgets",
				CommitID: testSHA,
			},
		},
		{
			name: "no hint",
			m: marker.Marker{
				CommitID: testSHA,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := marker.Encode(
				marker.DefaultSubjectTemplate, tt.m, marker.Details{},
			)

			got, err := marker.Decode(msg)
			require.NoError(t, err)
			assert.Equal(t, tt.m, got)
		})
	}
}

func TestDecode_no_marker(t *testing.T) {
	t.Parallel()

	_, err := marker.Decode("just a regular commit message\n\nwith a body")

	require.ErrorIs(t, err, marker.ErrNoMarker)
}

func TestDecode_malformed_value(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{name: "too short", value: "abc123"},
		{name: "not hex", value: strings.Repeat("z", 40)},
		{name: "empty", value: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := "subject\n\nVanity-Source-Commit: " + tt.value + "\n"

			_, err := marker.Decode(msg)
			require.ErrorIs(t, err, marker.ErrMalformedMarker)
		})
	}
}

func TestDecode_normalizes_case_and_whitespace(t *testing.T) {
	t.Parallel()

	msg := "subject\n\nVanity-Source-Commit:  " +
		strings.ToUpper(testSHA) + " \n"

	got, err := marker.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, testSHA, got.CommitID)
}

func TestDecode_trailer_order_not_significant(t *testing.T) {
	t.Parallel()

	msg := "subject\n\n" +
		"Source-Commit-URL: https://github.com/a/b/commit/" + testSHA + "\n" +
		"Source-Repo-Hint: https://github.com/a/b\n" +
		"Vanity-Source-Commit: " + testSHA + "\n"

	got, err := marker.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/a/b", got.RepoHint)
	assert.Equal(t, testSHA, got.CommitID)
	assert.Equal(
		t, "https://github.com/a/b/commit/"+testSHA, got.SourceURL,
	)
}

func TestDecodeDetails_recovers_informational_lines(t *testing.T) {
	t.Parallel()

	when := time.Date(2023, 7, 4, 8, 30, 0, 0, time.UTC)

	msg := marker.Encode(
		marker.DefaultSubjectTemplate,
		marker.Marker{RepoHint: "r", CommitID: testSHA},
		marker.Details{AuthorDate: when, Subject: "tune the flux"},
	)

	d := marker.DecodeDetails(msg)

	assert.True(t, when.Equal(d.AuthorDate))
	assert.Equal(t, "tune the flux", d.Subject)
}

func TestSubject_first_line_only(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", marker.Subject("hello\nworld"))
	assert.Equal(t, "hello", marker.Subject("hello"))
	assert.Equal(t, "hello", marker.Subject("hello\r\nworld"))
}
