// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package darwin

import (
	"context"
	"regexp"
	"strconv"
	"sync"

	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
	"github.com/microcosm-cc/bluemonday"
)

var (
	wrappingParagraph = regexp.MustCompile(`(^<p>)|(</p>$)`)

	messagePolicy     *bluemonday.Policy
	messagePolicyOnce sync.Once
)

// stationMessagePolicy allows the handful of inline tags station messages
// legitimately carry (bold, italic, line breaks) and strips everything else
// the detokenised HTML fragment might contain.
func stationMessagePolicy() *bluemonday.Policy {
	messagePolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("b", "i", "br", "strong", "em")
		messagePolicy = p
	})
	return messagePolicy
}

const upsertStationMessageSQL = `INSERT INTO darwin_messages
	(message_id, category, severity, suppress, stations, message)
	VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (message_id) DO UPDATE SET
	category=EXCLUDED.category, severity=EXCLUDED.severity,
	suppress=EXCLUDED.suppress, stations=EXCLUDED.stations, message=EXCLUDED.message;`

// processStationMessage folds an OW record's Station list and Msg body into
// darwin_messages. A message with no stations left means it has been
// withdrawn, which Darwin signals by omitting the Station list entirely.
func (p *Processor) processStationMessage(ctx context.Context, rec *xmldecoder.Node) {
	var stations []string
	var rawMessage string

	for _, child := range rec.Children() {
		switch child.Tag {
		case "Station":
			if crs := child.Attr("crs"); crs != "" {
				stations = append(stations, crs)
			}
		case "Msg":
			rawMessage = child.Text
		}
	}

	messageID := rec.Attr("id")
	if len(stations) == 0 {
		p.writer.Exec(ctx, `DELETE FROM darwin_messages WHERE message_id=$1;`, messageID)
		return
	}

	message := cleanStationMessage(rawMessage)
	severity, _ := strconv.Atoi(rec.Attr("sev"))

	p.writer.Exec(ctx, upsertStationMessageSQL,
		messageID, rec.Attr("cat"), severity, rec.Bool("suppress"), stations, message)
}

// cleanStationMessage strips the single enclosing <p> wrapper Darwin sends
// (some messages nest it, some don't), folds paragraph breaks into <br>, and
// sanitizes whatever inline markup remains.
func cleanStationMessage(raw string) string {
	msg := wrappingParagraph.ReplaceAllString(raw, "")
	msg = regexp.MustCompile(`<p></p>`).ReplaceAllString(msg, "")
	msg = regexp.MustCompile(`</p><p>`).ReplaceAllString(msg, "<br>")
	return stationMessagePolicy().Sanitize(msg)
}
