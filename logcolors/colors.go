package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// Store-related log prefixes
const (
	LogStoreInit    = Blue + "[Store:Init]" + Reset
	LogStore        = Blue + "[Store]" + Reset
	LogStoreBackup  = Blue + "[Store:Backup]" + Reset
	LogStoreClear   = Blue + "[Store:Clear]" + Reset
	LogStoreMigrate = Blue + "[Store:Migrate]" + Reset
)

// Result cache log prefixes
const (
	LogResultCache      = Green + "[ResultCache]" + Reset
	LogResultCacheClear = Green + "[ResultCache:Clear]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// Server/Init log prefixes
const (
	LogServer  = Green + "[Server]" + Reset
	LogConfig  = Cyan + "[Config]" + Reset
	LogHTTP    = Cyan + "[HTTP]" + Reset
	LogHistory = Cyan + "[History]" + Reset
)

// Search log prefixes
const (
	LogSearch       = Blue + "[Search]" + Reset
	LogAutocomplete = Blue + "[Autocomplete]" + Reset
	LogSuggestions  = Blue + "[Suggestions]" + Reset
	LogRemote       = Cyan + "[iTunes]" + Reset
	LogMerge        = Green + "[Merge]" + Reset
	LogFallback     = Cyan + "[Fallback]" + Reset
	LogCancelled    = Yellow + "[Cancelled]" + Reset
)
