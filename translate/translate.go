// Package translate localizes user-facing messages of the simulator.
//
// Messages are en-US Printf formats. Numbers are grouped according to the
// selected language, and a small catalog provides German text for the
// run report.
package translate

import (
	"sync"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// German strings for the report and monitor. English uses the key itself.
var german = map[string]string{
	"core %d":                   "Kern %d",
	"%d ticks":                  "%d Takte",
	"%d instructions":           "%d Befehle",
	"%d traps":                  "%d Traps",
	"%d cycles":                 "%d Zyklen",
	"IPC %.3f":                  "IPC %.3f",
	"halted":                    "angehalten",
	"running":                   "läuft",
	"cache hits %d, misses %d":  "Cache-Treffer %d, Fehlgriffe %d",
	"input queue full":          "Eingabepuffer voll",
	"unknown command %q":        "unbekannter Befehl %q",
	"label %v missing":          "Marke %v fehlt",
	"line %d '%v' %v":           "Zeile %d '%v' %v",
	"snapshot written to %s":    "Schnappschuss nach %s geschrieben",
	"snapshot restored from %s": "Schnappschuss aus %s geladen",
	"machine reset":             "Maschine zurückgesetzt",
	"all cores halted":          "alle Kerne angehalten",
	"simulated %d ticks in %v":  "%d Takte in %v simuliert",
	"%d ticks per second":       "%d Takte pro Sekunde",
	"no such core %d":           "Kern %d existiert nicht",
	"bad number %q":             "ungültige Zahl %q",
	"usage: %s":                 "Aufruf: %s",
	"input posted":              "Eingabe übergeben",
	"core %d halted":            "Kern %d angehalten",
	"core %d resumed":           "Kern %d fortgesetzt",
	"commands:":                 "Befehle:",
	"pc %d":                     "PC %d",
	"stalls %d, flushes %d":     "Wartezyklen %d, Leerungen %d",
}

var (
	mu      sync.RWMutex
	printer *message.Printer
)

func init() {
	for key, de := range german {
		_ = message.SetString(language.AmericanEnglish, key, key)
		_ = message.SetString(language.German, key, de)
	}

	locales, err := locale.GetLocales()
	if err != nil || len(locales) == 0 {
		locales = []string{"en-US"}
	}

	SetLanguages(locales...)
}

// SetLanguages selects the best supported language for the given BCP 47
// tags, in order of preference.
func SetLanguages(tags ...string) {
	p := message.NewPrinter(message.MatchLanguage(tags...))

	mu.Lock()
	printer = p
	mu.Unlock()
}

// From translates an en-US Sprintf format and formats it.
func From(key message.Reference, args ...any) string {
	mu.RLock()
	p := printer
	mu.RUnlock()

	return p.Sprintf(key, args...)
}
