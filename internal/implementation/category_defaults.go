package implementation

type categoryDefault struct {
	action     string
	detail     string
	prevention []string
}

// categoryDefaults back the generic path for errors without a template
var categoryDefaults = map[string]categoryDefault{
	"hydration": {
		action:     "Compare server and client output",
		detail:     "Render the page with JavaScript disabled and diff it against the hydrated markup.",
		prevention: []string{"Keep the first render free of browser-only and time-based values"},
	},
	"runtime-type": {
		action:     "Inspect the value at the failing line",
		detail:     "Log or breakpoint the value before the access and check its type and shape.",
		prevention: []string{"Type external data at the boundary and enable strict TypeScript checks"},
	},
	"react-state": {
		action:     "Trace state updates",
		detail:     "Use React DevTools to see which update triggers each render.",
		prevention: []string{"Enable the react-hooks lint rules"},
	},
	"authentication": {
		action:     "Trace the session",
		detail:     "Follow the session cookie from login through verification on the failing request.",
		prevention: []string{"Test expired and missing sessions explicitly"},
	},
	"database": {
		action:     "Check datastore connectivity",
		detail:     "Confirm the datastore is reachable with the configured connection string and that the schema exists.",
		prevention: []string{"Monitor datastore health and bootstrap the schema on deploy"},
	},
	"build": {
		action:     "Inspect module resolution",
		detail:     "Check the import path, package installation and tsconfig path aliases.",
		prevention: []string{"Run a clean install and build in CI"},
	},
	"validation": {
		action:     "Inspect the rejected input",
		detail:     "Log the payload and the validation issues for the failing request.",
		prevention: []string{"Validate input with one shared schema on client and server"},
	},
	"network": {
		action:     "Inspect the request",
		detail:     "Check the request URL, method, status code and CORS headers in the network panel.",
		prevention: []string{"Handle non-2xx responses and timeouts explicitly"},
	},
	"configuration": {
		action:     "Check the environment",
		detail:     "List the environment variables the failing code reads and confirm each is set.",
		prevention: []string{"Validate configuration at start-up"},
	},
}
