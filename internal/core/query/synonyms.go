package query

// defaultSynonyms is the static domain vocabulary used for query
// expansion. It is configuration data, not logic; deployments can
// swap it out via NewProcessorWithSynonyms.
var defaultSynonyms = map[string][]string{
	"error":         {"fault", "failure", "issue"},
	"fix":           {"repair", "resolve", "troubleshoot"},
	"install":       {"setup", "mount", "deploy"},
	"setup":         {"configuration", "install", "initialization"},
	"configure":     {"setup", "adjust", "tune"},
	"calibrate":     {"align", "adjust", "tune"},
	"calibration":   {"alignment", "adjustment", "tuning"},
	"alignment":     {"calibration", "positioning", "leveling"},
	"connect":       {"attach", "link", "wire"},
	"connection":    {"link", "interface", "cable"},
	"replace":       {"swap", "exchange", "substitute"},
	"clean":         {"maintenance", "wipe", "decontaminate"},
	"maintenance":   {"service", "upkeep", "inspection"},
	"chuck":         {"holder", "clamp", "fixture"},
	"wafer":         {"substrate", "sample"},
	"stage":         {"platform", "table", "positioner"},
	"sensor":        {"detector", "probe", "transducer"},
	"motor":         {"drive", "actuator", "servo"},
	"power":         {"supply", "voltage", "electrical"},
	"communication": {"interface", "protocol", "link"},
	"software":      {"firmware", "application", "program"},
	"update":        {"upgrade", "patch", "firmware"},
	"manual":        {"guide", "documentation", "instructions"},
	"procedure":     {"steps", "process", "workflow"},
	"specification": {"parameters", "tolerance", "requirements"},
}
