// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package refdata

import (
	"context"
	"fmt"

	"github.com/ClusterCockpit/darwin-ingest/internal/decompress"
	"github.com/ClusterCockpit/darwin-ingest/internal/repository"
	"github.com/ClusterCockpit/darwin-ingest/internal/xmldecoder"
	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SourceConfig names the S3-compatible bucket the nightly PportTimetableRef
// snapshot is published to.
type SourceConfig struct {
	Endpoint     string
	Bucket       string
	Key          string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// Loader fetches and decodes the PportTimetableRef reference snapshot and
// republishes it both into a Store (for in-process lookups) and the
// database, the way incorporate_ftp's reference pass re-seeds both
// LOCATIONS/REASONS and the darwin_locations/darwin_reasons tables.
type Loader struct {
	client *s3.Client
	bucket string
	key    string
	store  *Store
	writer *repository.Writer
	dec    *xmldecoder.Decoder
}

func referenceDecoder() *xmldecoder.Decoder {
	return xmldecoder.New(xmldecoder.Config{
		ListPaths:       []string{"PportTimetableRef", "PportTimetableRef.CancellationReasons", "PportTimetableRef.LateRunningReasons"},
		StripWhitespace: true,
		IncludeTags:     true,
	})
}

func NewLoader(cfg SourceConfig, store *Store, writer *repository.Writer) (*Loader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("refdata: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "eu-west-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("refdata: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	return &Loader{
		client: s3.NewFromConfig(awsCfg, opts),
		bucket: cfg.Bucket,
		key:    cfg.Key,
		store:  store,
		writer: writer,
		dec:    referenceDecoder(),
	}, nil
}

// Refresh downloads the gzip-compressed reference XML, decodes it and
// upserts every LocationRef/TocRef/Reason it finds. It is the S3 analogue of
// reference/insert.py's store(), run at startup and on the supervisor's
// periodic reference-refresh tick. Records are upserted into the reference
// tables and the Store; entries absent from the new object are kept.
func (l *Loader) Refresh(ctx context.Context) error {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.key),
	})
	if err != nil {
		return fmt.Errorf("refdata: get object %q: %w", l.key, err)
	}
	defer out.Body.Close()

	gz, err := decompress.NewReader(out.Body)
	if err != nil {
		return fmt.Errorf("refdata: decompress: %w", err)
	}
	defer gz.Close()

	root, err := l.dec.Decode(gz)
	if err != nil {
		return fmt.Errorf("refdata: decode: %w", err)
	}

	ref := root.Field("PportTimetableRef")
	if ref == nil {
		return fmt.Errorf("refdata: missing PportTimetableRef root")
	}

	count := 0
	for _, rec := range ref.Children() {
		switch rec.Tag {
		case "LocationRef":
			l.storeLocation(rec)
			count++
		case "TocRef":
			l.storeOperator(rec)
			count++
		case "CancellationReasons":
			l.storeReasons(rec, "C")
			count += len(rec.Children())
		case "LateRunningReasons":
			l.storeReasons(rec, "D")
			count += len(rec.Children())
		}
	}

	log.Infof("refdata: refreshed %d reference records from s3://%s/%s", count, l.bucket, l.key)
	return nil
}

func (l *Loader) storeLocation(rec *xmldecoder.Node) {
	tpl := rec.Attr("tpl")
	locname := rec.Attr("locname")
	nameDarwin := locname
	if locname == tpl {
		nameDarwin = ""
	}

	loc := schema.Location{
		Tiploc:     tpl,
		CrsDarwin:  rec.Attr("crs"),
		Operator:   rec.Attr("toc"),
		NameDarwin: nameDarwin,
		NameShort:  nameDarwin,
		NameFull:   nameDarwin,
	}
	if loc.NameShort == "" {
		loc.NameShort = tpl
	}
	if loc.NameFull == "" {
		loc.NameFull = loc.NameShort
	}
	loc.Category = categoryFor(loc)

	l.store.PutLocation(loc)

	l.writer.Exec(context.Background(), `INSERT INTO darwin_locations
		(tiploc, crs_darwin, crs_corpus, operator, name_short, name_full, category, name_darwin, name_corpus)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (tiploc) DO UPDATE SET
		crs_darwin=EXCLUDED.crs_darwin, operator=EXCLUDED.operator,
		name_short=EXCLUDED.name_short, name_full=EXCLUDED.name_full,
		category=EXCLUDED.category, name_darwin=EXCLUDED.name_darwin`,
		loc.Tiploc, loc.CrsDarwin, loc.CrsCorpus, loc.Operator,
		loc.NameShort, loc.NameFull, loc.Category, loc.NameDarwin, loc.NameCorpus)
}

// categoryFor buckets a location by whether Darwin or the static corpus
// supplied its display name; a location Darwin never names outside of a
// schedule call point is marked unstaffed.
func categoryFor(loc schema.Location) string {
	if loc.NameDarwin == "" && loc.NameCorpus == "" {
		return "U"
	}
	return "S"
}

func (l *Loader) storeOperator(rec *xmldecoder.Node) {
	t := schema.TocRef{
		Operator:     rec.Attr("toc"),
		OperatorName: rec.Attr("tocname"),
		URL:          rec.Attr("url"),
		Category:     tocCategoryFor(rec.Attr("toc")),
	}
	l.store.PutOperator(t)

	l.writer.Exec(context.Background(), `INSERT INTO darwin_operators (operator, operator_name, url, category)
		VALUES ($1,$2,$3,$4) ON CONFLICT (operator) DO UPDATE SET
		operator_name=EXCLUDED.operator_name, url=EXCLUDED.url, category=EXCLUDED.category`,
		t.Operator, t.OperatorName, t.URL, t.Category)
}

func (l *Loader) storeReasons(rec *xmldecoder.Node, reasonType string) {
	for _, reason := range rec.Children() {
		if reason.Tag != "Reason" {
			continue
		}
		code := reason.Attr("code")
		text := reason.Text
		l.store.PutReason(code, reasonType, text)
		l.writer.Exec(context.Background(), `INSERT INTO darwin_reasons (id, type, message)
			VALUES ($1,$2,$3) ON CONFLICT (id, type) DO UPDATE SET message=EXCLUDED.message`,
			code, reasonType, text)
	}
}

// tocCategoryFor buckets a TOC code into mainline/non-NR/non-rail/charter,
// matching the hard-coded table National Rail never exposes over the feed.
func tocCategoryFor(toc string) string {
	switch toc {
	case "NY", "PC", "ZM", "WR":
		return "C"
	case "LT", "SJ", "TW":
		return "M"
	case "ZB", "ZF":
		return "O"
	default:
		return "S"
	}
}

