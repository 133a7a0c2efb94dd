package templates

// BuiltinTemplates returns the fix templates shipped with the toolkit, keyed
// by the error types the builtin pattern signatures resolve to. Step text is
// expanded with Variables when the template is applied.
func BuiltinTemplates() []PatternTemplate {
	return []PatternTemplate{
		createHydrationMismatchTemplate(),
		createNullReferenceTemplate(),
		createInfiniteRenderTemplate(),
		createAsyncStateTemplate(),
		createAuthSessionTemplate(),
		createDatabaseConnectionTemplate(),
		createInputValidationTemplate(),
		createEnvironmentConfigTemplate(),
	}
}

func createHydrationMismatchTemplate() PatternTemplate {
	return PatternTemplate{
		Name:        "Hydration Mismatch Fix",
		ErrorType:   "hydration-mismatch",
		Description: "Server and client renders disagree on the first paint",
		Steps: []FixStep{
			{
				Action: "Find non-deterministic render values",
				Detail: "Search {{.FileName | orDefault \"the component\"}} for Math.random(), Date.now(), new Date() and window access used while rendering.",
			},
			{
				Action: "Move client-only values into an effect",
				Detail: "Initialise state in {{.Component | orDefault \"the component\"}} with a stable value and assign the random or time-based value inside useEffect.",
			},
			{
				Action: "Use stable identifiers",
				Detail: "Replace random ids with React useId() or ids derived from the data.",
			},
			{
				Action: "Verify the first render",
				Detail: "Reload the page with the console open and confirm the \"{{.ErrorMessage | truncate 60}}\" warning is gone.",
			},
		},
		Prevention: []string{
			"Lint for Math.random() and Date.now() inside useState initialisers",
			"Render client-only widgets through dynamic imports with ssr disabled",
			"Add a hydration smoke test that loads each page with React strict mode",
		},
	}
}

func createNullReferenceTemplate() PatternTemplate {
	return PatternTemplate{
		Name:        "Null Reference Guard",
		ErrorType:   "null-reference",
		Description: "A value is read before it exists",
		Steps: []FixStep{
			{Action: "Locate the dereference", Detail: "Use the stack trace to find the property access in {{.FileName | orDefault \"the failing file\"}}."},
			{Action: "Trace the data source", Detail: "Check whether the value comes from an async fetch, an optional prop or a missing database row."},
			{Action: "Guard the access", Detail: "Add optional chaining or an early return with a loading state in {{.Component | orDefault \"the component\"}}."},
			{Action: "Cover the empty case", Detail: "Add a test rendering the component with the value missing."},
		},
		Prevention: []string{
			"Enable strictNullChecks in tsconfig",
			"Type API responses so optional fields are marked optional",
		},
	}
}

func createInfiniteRenderTemplate() PatternTemplate {
	return PatternTemplate{
		Name:        "Render Loop Breaker",
		ErrorType:   "infinite-render",
		Description: "State updates trigger renders that trigger the same update",
		Steps: []FixStep{
			{Action: "Find state set during render", Detail: "Look for setState calls outside event handlers and effects in {{.Component | orDefault \"the component\"}}."},
			{Action: "Check effect dependencies", Detail: "Every useEffect needs a dependency array; objects and functions in it must be memoised."},
			{Action: "Stabilise references", Detail: "Wrap derived objects in useMemo and callbacks in useCallback."},
		},
		Prevention: []string{
			"Enable the react-hooks/exhaustive-deps lint rule",
			"Prefer derived values over state that mirrors props",
		},
	}
}

func createAsyncStateTemplate() PatternTemplate {
	return PatternTemplate{
		Name:        "Async State Cleanup",
		ErrorType:   "async-state",
		Description: "An async result arrives after the component unmounted",
		Steps: []FixStep{
			{Action: "Identify the pending request", Detail: "Find the fetch or promise in {{.FileName | orDefault \"the component\"}} that resolves after navigation."},
			{Action: "Cancel on cleanup", Detail: "Create an AbortController in the effect and abort it in the cleanup function."},
			{Action: "Ignore stale results", Detail: "Check the abort signal or an ignore flag before calling setState."},
		},
		Prevention: []string{
			"Wrap data fetching in a shared hook that handles cancellation",
		},
	}
}

func createAuthSessionTemplate() PatternTemplate {
	return PatternTemplate{
		Name:        "Session Verification Fix",
		ErrorType:   "auth-session",
		Description: "The session token is missing, expired or fails verification",
		Steps: []FixStep{
			{Action: "Inspect the cookie", Detail: "Confirm the session cookie is present with the expected path, expiry and SameSite attributes."},
			{Action: "Check the signing secret", Detail: "Ensure the secret used by verifyToken matches the one used by setSession in every environment."},
			{Action: "Handle expiry", Detail: "Redirect to login when verification fails instead of rendering {{.Component | orDefault \"the page\"}} with a null user."},
		},
		Prevention: []string{
			"Validate the auth secret at start-up",
			"Add an integration test for an expired session",
		},
	}
}

func createDatabaseConnectionTemplate() PatternTemplate {
	return PatternTemplate{
		Name:        "Datastore Connection Recovery",
		ErrorType:   "database-connection",
		Description: "The application cannot reach or query its datastore",
		Steps: []FixStep{
			{Action: "Verify the connection string", Detail: "Check DATABASE_URL for the current environment and test it with a direct client."},
			{Action: "Bootstrap the schema", Detail: "POST to /api/setup so the users and activity_logs tables exist."},
			{Action: "Reuse one pool", Detail: "Create the database client once per process instead of per request."},
			{Action: "Degrade gracefully", Detail: "Show a service unavailable message when the datastore is down instead of failing {{.Component | orDefault \"the request\"}}."},
		},
		Prevention: []string{
			"Run the setup endpoint as part of deployment",
			"Add a health check that pings the datastore",
			"Use parameterised queries everywhere",
		},
	}
}

func createInputValidationTemplate() PatternTemplate {
	return PatternTemplate{
		Name:        "Input Validation Hardening",
		ErrorType:   "input-validation",
		Description: "User input fails schema validation and throws",
		Steps: []FixStep{
			{Action: "Read the validation issues", Detail: "Log the field paths reported for \"{{.ErrorMessage | truncate 60}}\"."},
			{Action: "Switch to safe parsing", Detail: "Use safeParse and return field errors to the form instead of throwing."},
			{Action: "Align client and server schemas", Detail: "Share one schema between the form in {{.Component | orDefault \"the page\"}} and the API route."},
		},
		Prevention: []string{
			"Share validation schemas between client and server",
			"Test forms with empty and malformed input",
		},
	}
}

func createEnvironmentConfigTemplate() PatternTemplate {
	return PatternTemplate{
		Name:        "Environment Configuration Fix",
		ErrorType:   "environment-config",
		Description: "A required environment variable is missing or misnamed",
		Steps: []FixStep{
			{Action: "Find the variable", Detail: "Identify which process.env key {{.FileName | orDefault \"the module\"}} reads."},
			{Action: "Declare it", Detail: "Add the key to .env.local and to the deployment environment; prefix client-side keys with NEXT_PUBLIC_."},
			{Action: "Restart the server", Detail: "Environment files are read at start-up only."},
		},
		Prevention: []string{
			"Validate required variables when the process starts",
			"Keep an .env.example file in sync",
		},
	}
}
