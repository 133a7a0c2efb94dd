package patterns

var reactSourceGlobs = []string{"*.tsx", "*.jsx", "*.ts", "*.js"}

// builtinSignatures is the catalog shipped with the toolkit. Order matters:
// it breaks confidence ties.
func builtinSignatures() []PatternSignature {
	return []PatternSignature{
		{
			ID:       "hydration-mismatch",
			Name:     "Hydration Mismatch",
			Category: "hydration",
			Keywords: []string{"hydration", "server rendered", "did not match", "text content", "hydrating"},
			Matchers: []string{
				`(?i)hydration (failed|error|mismatch)`,
				`(?i)text content (does|did) not match`,
				`(?i)server[- ]rendered (html|text)`,
			},
			ContextClues:   []string{"useState", "Math.random", "Date.now", "new Date(", "typeof window", "useEffect", ".tsx", ".jsx"},
			TemplateKey:    "hydration-mismatch",
			Recommendation: "Make the first client render identical to the server render; move non-deterministic values into useEffect.",
		},
		{
			ID:       "null-reference",
			Name:     "Null or Undefined Property Access",
			Category: "runtime-type",
			Keywords: []string{"cannot read properties", "cannot read property", "undefined", "null", "is not an object"},
			Matchers: []string{
				`(?i)cannot read propert(y|ies) of (undefined|null)`,
				`(?i)(undefined|null) is not an object`,
			},
			ContextClues:   []string{".map(", "props.", "data.", "?.", "response."},
			TemplateKey:    "null-reference",
			Recommendation: "Guard the access with optional chaining or an explicit loading state before dereferencing.",
		},
		{
			ID:       "type-error",
			Name:     "Value Is Not a Function",
			Category: "runtime-type",
			Keywords: []string{"is not a function", "typeerror", "is not iterable"},
			Matchers: []string{
				`(?i)[\w.$]+ is not a function`,
				`(?i)[\w.$]+ is not iterable`,
			},
			ContextClues:   []string{"import ", "export default", "await ", ".then("},
			TemplateKey:    "type-error",
			Recommendation: "Check the import/export shape and await async values before calling them.",
		},
		{
			ID:       "infinite-render",
			Name:     "Infinite Render Loop",
			Category: "react-state",
			Keywords: []string{"too many re-renders", "maximum update depth", "infinite loop", "re-render"},
			Matchers: []string{
				`(?i)too many re-?renders`,
				`(?i)maximum update depth exceeded`,
			},
			ContextClues:   []string{"useEffect", "setState", "useState", "onClick={"},
			TemplateKey:    "infinite-render",
			Recommendation: "Stop setting state during render and give every effect a dependency array.",
		},
		{
			ID:       "async-state",
			Name:     "State Update After Unmount",
			Category: "react-state",
			Keywords: []string{"unmounted component", "memory leak", "state update", "race condition"},
			Matchers: []string{
				`(?i)can't perform a react state update on an unmounted component`,
			},
			ContextClues:   []string{"useEffect", "fetch(", "setTimeout", "setInterval", "AbortController"},
			TemplateKey:    "async-state",
			Recommendation: "Cancel pending work in the effect cleanup with an AbortController or an ignore flag.",
		},
		{
			ID:       "auth-session",
			Name:     "Authentication Session Failure",
			Category: "authentication",
			Keywords: []string{"unauthorized", "401", "token", "session", "jwt", "cookie", "verifytoken"},
			Matchers: []string{
				`(?i)(jwt|token) (expired|malformed|invalid)`,
				`(?i)\b401\b`,
				`(?i)invalid (session|signature)`,
			},
			ContextClues:   []string{"verifyToken", "setSession", "cookies(", "auth", "middleware"},
			TemplateKey:    "auth-session",
			Recommendation: "Verify the session cookie is set with the right path and expiry and that the signing secret matches.",
		},
		{
			ID:       "database-connection",
			Name:     "Database Connection Failure",
			Category: "database",
			Keywords: []string{"econnrefused", "connection", "database", "timeout", "pool", "relation", "does not exist"},
			Matchers: []string{
				`(?i)ECONNREFUSED`,
				`(?i)connection (refused|terminated|timed out)`,
				`(?i)relation "?[\w.]+"? does not exist`,
				`(?i)too many (connections|clients)`,
			},
			ContextClues:   []string{"db.", "query(", "sql", "drizzle", "prisma", "pool", "DATABASE_URL"},
			TemplateKey:    "database-connection",
			Recommendation: "Check DATABASE_URL, run the setup endpoint, and reuse a single pooled client per process.",
		},
		{
			ID:       "module-resolution",
			Name:     "Module Not Found",
			Category: "build",
			Keywords: []string{"module not found", "cannot find module", "can't resolve", "import"},
			Matchers: []string{
				`(?i)(module not found|cannot find module|can't resolve)`,
			},
			ContextClues:   []string{"import ", "require(", "tsconfig", "@/"},
			TemplateKey:    "module-resolution",
			Recommendation: "Confirm the package is installed and the path alias resolves in tsconfig.",
		},
		{
			ID:       "input-validation",
			Name:     "Input Validation Failure",
			Category: "validation",
			Keywords: []string{"validation", "zod", "invalid", "required", "schema", "expected"},
			Matchers: []string{
				`(?i)zoderror`,
				`(?i)validation (failed|error)`,
				`(?i)expected \w+, received \w+`,
			},
			ContextClues:   []string{"z.object", "safeParse", ".parse(", "schema"},
			TemplateKey:    "input-validation",
			Recommendation: "Use safeParse and surface field errors to the user instead of throwing.",
		},
		{
			ID:       "network-request",
			Name:     "Network Request Failure",
			Category: "network",
			Keywords: []string{"cors", "fetch failed", "network error", "failed to fetch", "access-control-allow-origin"},
			Matchers: []string{
				`(?i)blocked by cors policy`,
				`(?i)failed to fetch`,
				`(?i)network ?error`,
			},
			ContextClues:   []string{"fetch(", "axios", "headers", "api/"},
			TemplateKey:    "network-request",
			Recommendation: "Call same-origin API routes from the client and set CORS headers on cross-origin ones.",
		},
		{
			ID:       "environment-config",
			Name:     "Missing Environment Configuration",
			Category: "configuration",
			Keywords: []string{"environment variable", "process.env", "missing", "not set", ".env"},
			Matchers: []string{
				`(?i)(missing|undefined) (required )?(environment|env) variable`,
				`(?i)process\.env\.\w+ is (undefined|not set)`,
			},
			ContextClues:   []string{"process.env", ".env", "NEXT_PUBLIC_"},
			TemplateKey:    "environment-config",
			Recommendation: "Declare the variable in .env.local and validate required variables at start-up.",
		},
	}
}

// builtinAntiPatterns is the anti-pattern catalog shipped with the toolkit
func builtinAntiPatterns() []AntiPatternRule {
	return []AntiPatternRule{
		{
			AntiPattern: AntiPattern{
				ID:       "random-in-state-init",
				Name:     "Non-deterministic value in state initializer",
				Severity: SeverityCritical,
				Impact:   "Server and client compute different initial state, so hydration fails.",
				Solution: "Initialise state with a deterministic value and assign the random value inside useEffect, or use useId for identifiers.",
			},
			Pattern:   `useState\s*\([^;\n]*Math\.random\(`,
			FileGlobs: reactSourceGlobs,
		},
		{
			AntiPattern: AntiPattern{
				ID:       "date-in-state-init",
				Name:     "Current time in state initializer",
				Severity: SeverityHigh,
				Impact:   "Timestamps differ between server and client renders.",
				Solution: "Render a placeholder first and set the time from useEffect.",
			},
			Pattern:   `useState\s*\([^;\n]*(Date\.now\(|new Date\()`,
			FileGlobs: reactSourceGlobs,
		},
		{
			AntiPattern: AntiPattern{
				ID:       "browser-api-in-render",
				Name:     "Browser API accessed during render",
				Severity: SeverityMedium,
				Impact:   "window/document are undefined on the server and crash server rendering.",
				Solution: "Access browser globals inside useEffect or behind a typeof window check.",
			},
			Pattern:   `\b(window|document|localStorage|sessionStorage)\.`,
			Unless:    `useEffect|typeof window`,
			FileGlobs: reactSourceGlobs,
		},
		{
			AntiPattern: AntiPattern{
				ID:       "effect-without-deps",
				Name:     "Effect without dependency array",
				Severity: SeverityMedium,
				Impact:   "The effect runs after every render and can loop when it sets state.",
				Solution: "Pass an explicit dependency array to useEffect.",
			},
			Pattern:   `useEffect\(\s*(async\s*)?\(\s*\)\s*=>\s*\{[^{}]*\}\s*\)`,
			FileGlobs: reactSourceGlobs,
		},
		{
			AntiPattern: AntiPattern{
				ID:       "async-effect-callback",
				Name:     "Async function passed to useEffect",
				Severity: SeverityMedium,
				Impact:   "The returned promise is treated as a cleanup function and rejections go unhandled.",
				Solution: "Declare an async function inside the effect and call it.",
			},
			Pattern:   `useEffect\(\s*async`,
			FileGlobs: reactSourceGlobs,
		},
		{
			AntiPattern: AntiPattern{
				ID:       "hardcoded-secret",
				Name:     "Hardcoded credential",
				Severity: SeverityCritical,
				Impact:   "Secrets committed to source leak through the repository and the client bundle.",
				Solution: "Read credentials from server-side environment variables.",
			},
			Pattern: `(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*["'][^"'\s]{6,}["']`,
		},
		{
			AntiPattern: AntiPattern{
				ID:       "sql-string-concat",
				Name:     "SQL built by string concatenation",
				Severity: SeverityCritical,
				Impact:   "User input reaches the query text, allowing SQL injection.",
				Solution: "Use parameterised queries or the query builder's bound values.",
			},
			Pattern: `(?i)\b(select|insert\s+into|update|delete\s+from)\b[^;\n]*(["'` + "`" + `]\s*\+\s*\w|\$\{)`,
		},
		{
			AntiPattern: AntiPattern{
				ID:       "empty-catch",
				Name:     "Swallowed exception",
				Severity: SeverityHigh,
				Impact:   "Failures disappear silently and surface later as unrelated bugs.",
				Solution: "Log the error and surface a user-visible message or rethrow.",
			},
			Pattern: `catch\s*(\(\s*\w*\s*\))?\s*\{\s*\}`,
		},
		{
			AntiPattern: AntiPattern{
				ID:       "dangerous-inner-html",
				Name:     "Unsanitised HTML injection",
				Severity: SeverityHigh,
				Impact:   "Rendering unsanitised HTML opens cross-site scripting holes.",
				Solution: "Render text content or sanitise the HTML before injecting it.",
			},
			Pattern:   `dangerouslySetInnerHTML`,
			FileGlobs: []string{"*.tsx", "*.jsx"},
		},
		{
			AntiPattern: AntiPattern{
				ID:       "explicit-any",
				Name:     "Loosely typed value",
				Severity: SeverityLow,
				Impact:   "The compiler stops checking shapes that flow through this value.",
				Solution: "Replace any with a concrete type or unknown plus a type guard.",
			},
			Pattern:   `(:\s*any\b|\bas\s+any\b)`,
			FileGlobs: []string{"*.ts", "*.tsx"},
		},
		{
			AntiPattern: AntiPattern{
				ID:       "console-log",
				Name:     "Leftover console.log",
				Severity: SeverityLow,
				Impact:   "Debug output leaks into production logs and the browser console.",
				Solution: "Remove the statement or route it through the application logger.",
			},
			Pattern: `console\.log\(`,
		},
	}
}
