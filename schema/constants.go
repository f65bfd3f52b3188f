package schema

// Custom string types for type safety.
type (
	// ResultStatus is the serialized status of a check, category or file.
	ResultStatus string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and history.
	DatabaseBackend string

	// IsolationMode represents how validator tasks are isolated from the caller.
	IsolationMode string
)

// All result statuses supported.
const (
	ErrorResult  ResultStatus = "error"
	PassedResult ResultStatus = "passed"
	FailedResult ResultStatus = "failed"

	// ErroneousResult is accepted on input only. Older reports used it at file level.
	ErroneousResult ResultStatus = "erroneous"
)

// All output modes supported.
const (
	XMLOut     OutputMode = "xml" // default
	TextOut    OutputMode = "text"
	JSONOut    OutputMode = "json"
	YAMLOut    OutputMode = "yaml"
	CSVOut     OutputMode = "csv"
	TSVOut     OutputMode = "tsv"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All isolation modes supported.
const (
	GoroutineIsolation IsolationMode = "goroutine" // default
	ProcessIsolation   IsolationMode = "process"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	XMLOut:     {},
	TextOut:    {},
	JSONOut:    {},
	YAMLOut:    {},
	CSVOut:     {},
	TSVOut:     {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidIsolationModes lists all valid isolation modes.
var ValidIsolationModes = map[IsolationMode]struct{}{
	GoroutineIsolation: {},
	ProcessIsolation:   {},
}

// Names of the fixed keys emitted by CheckResult.ToMap.
const (
	FilenameKey  = "filename"
	FormatKey    = "format"
	VersionKey   = "version"
	ResultKey    = "result"
	TimeTakenKey = "timeTaken"
)
