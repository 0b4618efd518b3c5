package schema

// Name identifies a command known to the registry
type Name string

// Known commands. Every constant has an entry in the embedded definitions;
// Load fails otherwise.
const (
	// Identity
	GetModel                      Name = "GetModel"
	GetSerialNumber               Name = "GetSerialNumber"
	GetUserMowerNameAsAsciiString Name = "GetUserMowerNameAsAsciiString"

	// Status
	IsCharging       Name = "IsCharging"
	GetBatteryLevel  Name = "GetBatteryLevel"
	GetState         Name = "GetState"
	GetActivity      Name = "GetActivity"
	GetMode          Name = "GetMode"
	GetNextStartTime Name = "GetNextStartTime"
	GetAllStatistics Name = "GetAllStatistics"
	GetMessage       Name = "GetMessage"

	// Schedule
	GetNumberOfTasks Name = "GetNumberOfTasks"
	GetTask          Name = "GetTask"

	// Control
	SetMode                       Name = "SetMode"
	SetOverrideMow                Name = "SetOverrideMow"
	SetOverrideParkUntilNextStart Name = "SetOverrideParkUntilNextStart"
	StartTrigger                  Name = "StartTrigger"
	Pause                         Name = "Pause"

	// Session
	EnterOperatorPin Name = "EnterOperatorPin"
)

// Names lists every known command in a stable order
var Names = []Name{
	GetModel,
	GetSerialNumber,
	GetUserMowerNameAsAsciiString,
	IsCharging,
	GetBatteryLevel,
	GetState,
	GetActivity,
	GetMode,
	GetNextStartTime,
	GetAllStatistics,
	GetMessage,
	GetNumberOfTasks,
	GetTask,
	SetMode,
	SetOverrideMow,
	SetOverrideParkUntilNextStart,
	StartTrigger,
	Pause,
	EnterOperatorPin,
}
