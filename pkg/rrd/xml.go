package rrd

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/iamNilotpal/rrdpool/pkg/errors"
)

// xmlDump mirrors the subset of an rrdtool style XML dump the importer
// needs: the step, the datasource layout and the archive layout. Stored
// values in <database> rows are counted, not replayed.
type xmlDump struct {
	XMLName xml.Name `xml:"rrd"`
	Step    int64    `xml:"step"`
	DS      []struct {
		Name      string `xml:"name"`
		Heartbeat int64  `xml:"minimal_heartbeat"`
	} `xml:"ds"`
	RRA []struct {
		PdpPerRow int `xml:"pdp_per_row"`
		Rows      []struct {
			XMLName xml.Name `xml:"row"`
		} `xml:"database>row"`
	} `xml:"rra"`
}

// ParseDump reads an XML dump file and converts it into a definition. The
// returned definition has no target path; callers fill it in.
func ParseDump(xmlPath string) (*Def, error) {
	if xmlPath == "" {
		return nil, errors.NewRequiredFieldError("xml dump path")
	}

	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrIOReadFailed,
			fmt.Sprintf("Failed to read XML dump %s", xmlPath),
		).WithPath(xmlPath)
	}

	var dump xmlDump
	if err := xml.Unmarshal(data, &dump); err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrDumpParseFailed,
			fmt.Sprintf("Failed to parse XML dump %s", xmlPath),
		).WithPath(xmlPath)
	}

	// rrdtool pads element text with whitespace.
	def := Def{Step: dump.Step}
	for _, ds := range dump.DS {
		def.Sources = append(def.Sources, Source{Name: strings.TrimSpace(ds.Name), Heartbeat: ds.Heartbeat})
	}
	for _, rra := range dump.RRA {
		def.Archives = append(def.Archives, Archive{Steps: rra.PdpPerRow, Rows: len(rra.Rows)})
	}

	return &def, nil
}
