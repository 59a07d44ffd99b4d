// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package xmldecoder_test

import (
	"strings"
	"testing"

	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
)

func darwinDecoder() *xmldecoder.Decoder {
	return xmldecoder.New(xmldecoder.Config{
		ListPaths: []string{
			"Pport.uR", "Pport.uR.schedule", "Pport.uR.TS", "Pport.uR.OW",
			"Pport.sR", "Pport.sR.schedule", "Pport.sR.TS", "Pport.sR.OW",
		},
		Detokenise: []string{
			"Pport.uR.OW.Msg", "Pport.sR.OW.Msg",
		},
		StripWhitespace: true,
		IncludeTags:     true,
	})
}

func TestDecodeScheduleListChildren(t *testing.T) {
	doc := `<Pport><uR updateOrigin="TD">
		<schedule rid="A" uid="U1" ssd="2021-06-01" trainId="1A01" toc="GW">
			<OR tpl="PADTON" act="TB" wtd="10:05:00"/>
			<DT tpl="READING" act="TF" wta="10:35:00"/>
		</schedule>
		<TS rid="A"><Location tpl="PADTON"><dep at="10:06:00"/></Location></TS>
	</uR></Pport>`

	root, err := darwinDecoder().Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	pport := root.Field("Pport")
	if pport == nil {
		t.Fatal("missing Pport root field")
	}
	ur := pport.Field("uR")
	if ur == nil {
		t.Fatal("missing uR field")
	}

	children := ur.Children()
	if len(children) != 2 {
		t.Fatalf("expected 2 list children, got %d", len(children))
	}
	if children[0].Tag != "schedule" || children[1].Tag != "TS" {
		t.Fatalf("unexpected child tags: %v %v", children[0].Tag, children[1].Tag)
	}

	schedule := children[0]
	if schedule.Attr("rid") != "A" || schedule.Attr("ssd") != "2021-06-01" {
		t.Fatalf("schedule attrs not decoded: %+v", schedule.Attrs)
	}

	locations := schedule.Children()
	if len(locations) != 2 {
		t.Fatalf("expected 2 schedule locations, got %d", len(locations))
	}
	if locations[0].Tag != "OR" || locations[0].Attr("tpl") != "PADTON" {
		t.Fatalf("unexpected first location: %+v", locations[0])
	}
}

func TestDecodeDetokeniseEmbeddedHTML(t *testing.T) {
	doc := `<Pport><uR>
		<OW id="M1" cat="X" sev="1"><Station crs="KGX"/><Msg><p>Line <b>closed</b></p></Msg></OW>
	</uR></Pport>`

	root, err := darwinDecoder().Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	ow := root.Field("Pport").Field("uR").Children()[0]
	msg := ow.Children()
	var msgText string
	for _, c := range msg {
		if c.Tag == "Msg" {
			msgText = c.Text
		}
	}

	if msgText != "<p>Line <b>closed</b></p>" {
		t.Fatalf("expected re-serialized html, got %q", msgText)
	}
}
