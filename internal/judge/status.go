package judge

import "github.com/codecrack-oj/apiserver/types"

// The execution backend reports submissions with numeric status ids.
// Ids 1 and 2 mean the submission has not finished; everything at or
// above 3 is terminal. These tables are the single place where the
// backend's numeric convention meets the internal JudgeStatus enum.
const (
	backendStatusInQueue    = 1
	backendStatusProcessing = 2
)

var fromBackendStatus = map[int]types.JudgeStatus{
	3:  types.StatusAccepted,
	4:  types.StatusWrongAnswer,
	5:  types.StatusTimeLimitExceeded,
	6:  types.StatusCompileError,
	7:  types.StatusRuntimeError, // SIGSEGV
	8:  types.StatusRuntimeError, // SIGXFSZ
	9:  types.StatusRuntimeError, // SIGFPE
	10: types.StatusRuntimeError, // SIGABRT
	11: types.StatusRuntimeError, // NZEC
	12: types.StatusRuntimeError, // other
	13: types.StatusJudgeError,   // internal error
	14: types.StatusJudgeError,   // exec format error
}

var toStatusID = map[types.JudgeStatus]int{
	types.StatusAccepted:            3,
	types.StatusWrongAnswer:         4,
	types.StatusTimeLimitExceeded:   5,
	types.StatusCompileError:        6,
	types.StatusRuntimeError:        11,
	types.StatusMemoryLimitExceeded: 12,
	types.StatusJudgeError:          13,
}

func statusFromBackend(id int) types.JudgeStatus {
	if status, ok := fromBackendStatus[id]; ok {
		return status
	}
	return types.StatusJudgeError
}

// StatusID maps an internal status to the numeric id exposed in API
// responses. The table follows the backend's convention (3 = Accepted).
func StatusID(status types.JudgeStatus) int {
	if id, ok := toStatusID[status]; ok {
		return id
	}
	return toStatusID[types.StatusJudgeError]
}

// Backend language ids for the supported languages.
var languageIDs = map[string]int{
	"cpp":        54, // C++ (GCC)
	"java":       62, // Java (OpenJDK)
	"javascript": 63, // JavaScript (Node.js)
}

// LanguageID returns the backend's numeric id for a language key.
func LanguageID(language string) (int, bool) {
	id, ok := languageIDs[language]
	return id, ok
}

// SupportedLanguage reports whether the language key is judgeable.
func SupportedLanguage(language string) bool {
	_, ok := languageIDs[language]
	return ok
}
