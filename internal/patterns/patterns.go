// Package patterns classifies request attributes against compiled rule sets.
//
// A Catalog is built once at construction from the default rules plus any
// operator-supplied additions, and is immutable afterwards. Classification is
// a pure function over the rule sets, safe for unlimited concurrent use.
package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// Category identifies which request attribute a rule inspects.
type Category string

const (
	CategoryPath      Category = "path"
	CategoryQuery     Category = "query"
	CategoryUserAgent Category = "user_agent"
)

// defaultPathRules match request paths that have no business being served by
// this platform: version control leftovers, PHP exploits, framework probes,
// IoT/router endpoints, WordPress scans, shells, and backup files.
var defaultPathRules = []string{
	// Git/Version Control
	`\.git`,
	`\.svn`,
	`\.hg`,
	`\.bzr`,

	// Configuration files
	`\.env`,
	`\.htaccess`,
	`\.htpasswd`,
	`wp-config\.php`,
	`config\.php`,
	`settings\.php`,
	`credentials`,

	// PHP-specific exploits (CVE-2017-9841 and similar)
	`vendor/phpunit`,
	`eval-stdin\.php`,
	`phpunit`,
	`\.php$`,
	`\.php\?`,
	`\.phtml`,
	`\.php3`,
	`\.php4`,
	`\.php5`,
	`\.php7`,
	`\.phps`,

	// Framework-specific attacks
	`think[pP]hp`,
	`thinkphp`,
	`index\.php`,
	`public/index\.php`,
	`invokefunction`,
	`call_user_func`,

	// Laravel/Yii/Zend attacks
	`laravel`,
	`yii`,
	`zend`,
	`artisan`,
	`\.blade\.php`,

	// Docker/Container exposure
	`containers/json`,
	`docker\.sock`,
	`_ping`,
	`v1\.\d+/containers`,

	// Router/IoT exploitation
	`luci`,
	`cgi-bin`,
	`webLanguage`,
	`/SDK`,
	`goform`,
	`formLogin`,
	`developmentserver`,
	`metadatauploader`,

	// WordPress attacks
	`wp-admin`,
	`wp-content`,
	`wp-includes`,
	`wp-login`,
	`xmlrpc\.php`,

	// Shell/Remote code execution
	`shell`,
	`cmd\.php`,
	`c99`,
	`r57`,

	// Backup/sensitive files
	`\.sql$`,
	`\.bak$`,
	`\.old$`,
	`\.backup$`,
	`\.tar$`,
	`\.tar\.gz$`,
	`\.rar$`,
	`dump`,

	// Admin panels (non-API)
	`phpmyadmin`,
	`adminer`,
	`manager/html`,
	`admin\.php`,

	// Other scripting languages
	`\.asp$`,
	`\.aspx$`,
	`\.jsp$`,
	`\.cgi$`,
	`\.pl$`,

	// Misc probes
	`well-known/security`,
	`actuator`,
	`service/api-docs`,
	`/bins/`,
}

// defaultQueryRules match query strings carrying injection payloads:
// PHP stream wrappers, SQL injection, XSS, and code-execution primitives.
var defaultQueryRules = []string{
	`allow_url_include`,
	`auto_prepend_file`,
	`php://input`,
	`php://filter`,
	`expect://`,
	`data://text`,
	`file://`,
	`glob://`,
	`phar://`,
	`zip://`,
	`union\s+select`,
	`<script`,
	`javascript:`,
	`onerror\s*=`,
	`onclick\s*=`,
	`onload\s*=`,
	`onmouseover\s*=`,
	`eval\(`,
	`base64_decode`,
	`exec\(`,
	`system\(`,
	`passthru\(`,
	`pearcmd`,
}

// defaultUserAgentRules match the signatures of known scanners.
var defaultUserAgentRules = []string{
	`sqlmap`,
	`nikto`,
	`nmap`,
	`masscan`,
	`zgrab`,
	`gobuster`,
	`dirbuster`,
	`wpscan`,
	`nessus`,
	`openvas`,
	`acunetix`,
	`qualys`,
	`nuclei`,
	`httpx`,
	`python-requests.*scan`,
	`curl.*scan`,
}

// Rule is a single compiled classification rule. Label is the rule's source
// expression and identifies it in logs and violation records.
type Rule struct {
	Category Category
	Label    string
	re       *regexp.Regexp
}

// Match is the result of a successful classification.
type Match struct {
	Category Category
	Label    string
}

// Config selects the rule content for a Catalog. Extra rules are appended
// after the defaults within each category.
type Config struct {
	DisableDefaults bool
	Paths           []string
	Queries         []string
	UserAgents      []string
}

// Catalog holds the compiled rule sets. Immutable once built.
type Catalog struct {
	pathRules  []Rule
	queryRules []Rule
	uaRules    []Rule
}

// NewCatalog compiles the default rules plus any configured additions.
// Compilation errors fail construction; a Catalog never holds a partial set.
func NewCatalog(cfg Config) (*Catalog, error) {
	pathSrc := cfg.Paths
	querySrc := cfg.Queries
	uaSrc := cfg.UserAgents
	if !cfg.DisableDefaults {
		pathSrc = append(append([]string{}, defaultPathRules...), cfg.Paths...)
		querySrc = append(append([]string{}, defaultQueryRules...), cfg.Queries...)
		uaSrc = append(append([]string{}, defaultUserAgentRules...), cfg.UserAgents...)
	}

	pathRules, err := compile(CategoryPath, pathSrc)
	if err != nil {
		return nil, err
	}
	queryRules, err := compile(CategoryQuery, querySrc)
	if err != nil {
		return nil, err
	}
	uaRules, err := compile(CategoryUserAgent, uaSrc)
	if err != nil {
		return nil, err
	}

	return &Catalog{
		pathRules:  pathRules,
		queryRules: queryRules,
		uaRules:    uaRules,
	}, nil
}

// MustNewCatalog is NewCatalog that panics on compilation failure.
// Intended for the built-in rule set, which is covered by tests.
func MustNewCatalog(cfg Config) *Catalog {
	c, err := NewCatalog(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

func compile(category Category, sources []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(sources))
	for _, src := range sources {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, fmt.Errorf("invalid %s rule %q: %w", category, src, err)
		}
		rules = append(rules, Rule{Category: category, Label: src, re: re})
	}
	return rules, nil
}

// Classify checks the lower-cased path, query string and user agent against
// the rule sets in fixed precedence: path rules first, then query rules, then
// user-agent rules. The first matching rule wins. Returns ok=false when no
// rule matches.
func (c *Catalog) Classify(path, query, userAgent string) (Match, bool) {
	path = strings.ToLower(path)
	query = strings.ToLower(query)
	userAgent = strings.ToLower(userAgent)

	for _, r := range c.pathRules {
		if r.re.MatchString(path) {
			return Match{Category: r.Category, Label: r.Label}, true
		}
	}
	for _, r := range c.queryRules {
		if r.re.MatchString(query) {
			return Match{Category: r.Category, Label: r.Label}, true
		}
	}
	for _, r := range c.uaRules {
		if r.re.MatchString(userAgent) {
			return Match{Category: r.Category, Label: r.Label}, true
		}
	}
	return Match{}, false
}

// RuleCount returns the number of compiled rules per category,
// for startup logging and the health surface.
func (c *Catalog) RuleCount() (paths, queries, userAgents int) {
	return len(c.pathRules), len(c.queryRules), len(c.uaRules)
}

// String implements fmt.Stringer for a Match, in the log format
// "<category>:<label>".
func (m Match) String() string {
	return string(m.Category) + ":" + m.Label
}
