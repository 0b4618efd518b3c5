package mower

import (
	"fmt"
	"strings"
)

// MowerState is the operating state reported by GetState
type MowerState uint8

const (
	StateOff MowerState = iota
	StateWaitForSafetyPin
	StateStopped
	StateFatalError
	StatePendingStart
	StatePaused
	StateInOperation
	StateRestricted
	StateError
)

var stateNames = []string{
	"OFF",
	"WAIT_FOR_SAFETYPIN",
	"STOPPED",
	"FATAL_ERROR",
	"PENDING_START",
	"PAUSED",
	"IN_OPERATION",
	"RESTRICTED",
	"ERROR",
}

func (s MowerState) String() string { return enumName(stateNames, uint32(s)) }

// Known reports whether s is a defined state
func (s MowerState) Known() bool { return int(s) < len(stateNames) }

// MowerActivity is what the mower is doing, reported by GetActivity
type MowerActivity uint8

const (
	ActivityNone MowerActivity = iota
	ActivityCharging
	ActivityGoingOut
	ActivityMowing
	ActivityGoingHome
	ActivityParked
	ActivityStoppedInGarden
)

var activityNames = []string{
	"NONE",
	"CHARGING",
	"GOING_OUT",
	"MOWING",
	"GOING_HOME",
	"PARKED",
	"STOPPED_IN_GARDEN",
}

func (a MowerActivity) String() string { return enumName(activityNames, uint32(a)) }

// Known reports whether a is a defined activity
func (a MowerActivity) Known() bool { return int(a) < len(activityNames) }

// ModeOfOperation is the mode set with SetMode
type ModeOfOperation uint8

const (
	ModeAuto ModeOfOperation = iota
	ModeManual
	ModeHome
	ModeDemo
	ModePOI
)

var modeNames = []string{"AUTO", "MANUAL", "HOME", "DEMO", "POI"}

func (m ModeOfOperation) String() string { return enumName(modeNames, uint32(m)) }

// ParseMode accepts a mode name in any case
func ParseMode(s string) (ModeOfOperation, error) {
	for i, name := range modeNames {
		if strings.EqualFold(name, s) {
			return ModeOfOperation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (want one of %s)", s, strings.Join(modeNames, ", "))
}

// ErrorCode is the code carried by a mower message
type ErrorCode uint32

var errorCodeNames = []string{
	"NO_MESSAGE",
	"OUTSIDE_WORKING_AREA",
	"NO_LOOP_SIGNAL",
	"WRONG_LOOP_SIGNAL",
	"LOOP_SENSOR_PROBLEM_FRONT",
	"LOOP_SENSOR_PROBLEM_REAR",
	"LOOP_SENSOR_PROBLEM_LEFT",
	"LOOP_SENSOR_PROBLEM_RIGHT",
	"WRONG_PIN_CODE",
	"TRAPPED",
	"UPSIDE_DOWN",
	"LOW_BATTERY",
	"EMPTY_BATTERY",
	"NO_DRIVE",
	"MOWER_LIFTED",
	"LIFTED",
	"STUCK_IN_CHARGING_STATION",
	"CHARGING_STATION_BLOCKED",
	"COLLISION_SENSOR_PROBLEM_REAR",
	"COLLISION_SENSOR_PROBLEM_FRONT",
	"WHEEL_MOTOR_BLOCKED_RIGHT",
	"WHEEL_MOTOR_BLOCKED_LEFT",
	"WHEEL_DRIVE_PROBLEM_RIGHT",
	"WHEEL_DRIVE_PROBLEM_LEFT",
	"CUTTING_SYSTEM_BLOCKED",
	"CUTTING_SYSTEM_BLOCKED_2",
	"INVALID_SUB_DEVICE_COMBINATION",
	"SETTINGS_RESTORED",
	"MEMORY_CIRCUIT_PROBLEM",
	"SLOPE_TOO_STEEP",
	"CHARGING_SYSTEM_PROBLEM",
	"STOP_BUTTON_PROBLEM",
	"TILT_SENSOR_PROBLEM",
	"MOWER_TILTED",
	"CUTTING_STOPPED_SLOPE_TOO_STEEP",
	"WHEEL_MOTOR_OVERLOADED_RIGHT",
	"WHEEL_MOTOR_OVERLOADED_LEFT",
	"CHARGING_CURRENT_TOO_HIGH",
	"ELECTRONIC_PROBLEM",
	"CUTTING_MOTOR_PROBLEM",
	"LIMITED_CUTTING_HEIGHT_RANGE",
	"UNEXPECTED_CUTTING_HEIGHT_ADJ",
	"LIMITED_CUTTING_HEIGHT_RANGE_2",
	"CUTTING_HEIGHT_PROBLEM_DRIVE",
	"CUTTING_HEIGHT_PROBLEM_CURR",
	"CUTTING_HEIGHT_PROBLEM_DIR",
	"CUTTING_HEIGHT_BLOCKED",
	"CUTTING_HEIGHT_PROBLEM",
	"NO_RESPONSE_FROM_CHARGER",
	"ULTRASONIC_PROBLEM",
	"GUIDE_1_NOT_FOUND",
	"GUIDE_2_NOT_FOUND",
	"GUIDE_3_NOT_FOUND",
	"GPS_NAVIGATION_PROBLEM",
	"WEAK_GPS_SIGNAL",
	"DIFFICULT_FINDING_HOME",
	"GUIDE_CALIBRATION_ACCOMPLISHED",
	"GUIDE_CALIBRATION_FAILED",
	"TEMPORARY_BATTERY_PROBLEM",
}

func (c ErrorCode) String() string { return enumName(errorCodeNames, uint32(c)) }

// Known reports whether c is a defined code
func (c ErrorCode) Known() bool { return int(c) < len(errorCodeNames) }

// enumName never fails; firmware may report values newer than this table
func enumName(names []string, v uint32) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("Unknown(%d)", v)
}
