package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"vibewalk/pkg/logging"
)

// key=value or key="value with spaces", as written by slog's text handler.
var logAttr = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// maxAttrLen drops long attribute values from the condensed line.
const maxAttrLen = 20

// handleLatestLog returns the last captured log line, or the last n lines
// with ?n=.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	if s := r.URL.Query().Get("n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: n must be a positive integer", errBadRequest))
			return
		}
		lines := logging.GlobalLogCapture.Lines(n)
		out := make([]string, 0, len(lines))
		for _, l := range lines {
			out = append(out, condenseLogLine(l))
		}
		writeJSON(w, http.StatusOK, map[string][]string{"logs": out})
		return
	}

	line := logging.GlobalLogCapture.GetLastLine()
	writeJSON(w, http.StatusOK, map[string]string{"log": condenseLogLine(line)})
}

// condenseLogLine turns a text handler line into "HH:MM:SS msg (k=v, ...)".
// Level is dropped, attributes are sorted and long values are left out.
// Lines without a msg attribute are returned unchanged.
func condenseLogLine(raw string) string {
	var (
		clock, msg string
		attrs      []string
	)
	for _, m := range logAttr.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				clock = t.Format("15:04:05")
			}
		case "level":
		case "msg":
			msg = val
		default:
			if len(val) <= maxAttrLen {
				attrs = append(attrs, key+"="+val)
			}
		}
	}
	if msg == "" {
		return raw
	}

	var b strings.Builder
	if clock != "" {
		b.WriteString(clock)
		b.WriteByte(' ')
	}
	b.WriteString(msg)
	if len(attrs) > 0 {
		sort.Strings(attrs)
		b.WriteString(" (")
		b.WriteString(strings.Join(attrs, ", "))
		b.WriteByte(')')
	}
	return b.String()
}
