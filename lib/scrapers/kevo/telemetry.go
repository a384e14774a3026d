package kevo

import (
	"kevoctl/lib/restyutil"
	"kevoctl/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

var tracer = telemetry.Tracer("scrapers/kevo")

var debugOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput enables dumping of every HTTP exchange made
// by clients constructed after this call, for scrape debugging.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	debugOutput = out
}

func instrumentClient(client *resty.Client) {
	if debugOutput != nil {
		restyutil.InstrumentClient(client, tracer, debugOutput)
		return
	}
	telemetry.InstrumentResty(client, "scrapers/kevo/http")
}
