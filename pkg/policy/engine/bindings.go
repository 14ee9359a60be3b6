package engine

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/perception"
	"mercator-hq/drivetwin/pkg/road"
)

const vehicleTypeName = "drivetwin.vehicle"

// defaultSafeDeceleration is the is_safe_enter braking limit when none is given [m/s²].
const defaultSafeDeceleration = 5.0

// bindings exposes a Capabilities implementation to one Lua state.
type bindings struct {
	caps Capabilities
	// One userdata per vehicle within a step so handles compare equal in
	// Lua. Cleared by forget at the start of every step.
	vehicles map[road.Vehicle]*lua.LUserData
}

func newBindings(caps Capabilities) *bindings {
	return &bindings{
		caps:     caps,
		vehicles: make(map[road.Vehicle]*lua.LUserData),
	}
}

// forget drops the handles of the previous step.
func (b *bindings) forget() {
	clear(b.vehicles)
}

// register installs the vehicle metatable and every capability function.
func (b *bindings) register(L *lua.LState) {
	mt := L.NewTypeMetatable(vehicleTypeName)
	L.SetField(mt, "__index", L.NewFunction(b.vehicleIndex))
	L.SetField(mt, "__tostring", L.NewFunction(b.vehicleString))
	L.SetField(mt, "__metatable", lua.LFalse)

	for name, fn := range map[string]lua.LGFunction{
		"get_ego_vehicle":                       b.getEgoVehicle,
		"get_target_speed":                      b.getTargetSpeed,
		"get_desired_time_headway":              b.getDesiredTimeHeadway,
		"set_target_speed":                      b.setTargetSpeed,
		"set_target_lane":                       b.setTargetLane,
		"set_desired_time_headway":              b.setDesiredTimeHeadway,
		"get_speed_of":                          b.getSpeedOf,
		"get_lane_of":                           b.getLaneOf,
		"detect_front_vehicle_in":               b.detectFrontVehicleIn,
		"detect_rear_vehicle_in":                b.detectRearVehicleIn,
		"get_distance_between_vehicles":         b.getDistanceBetweenVehicles,
		"get_left_lane":                         b.getLeftLane,
		"get_right_lane":                        b.getRightLane,
		"get_left_to_right_cross_traffic_lanes": b.getLeftToRightCrossTrafficLanes,
		"get_right_to_left_cross_traffic_lanes": b.getRightToLeftCrossTrafficLanes,
		"detect_stop_sign_ahead":                b.detectStopSignAhead,
		"autopilot":                             b.autopilot,
		"recover_from_stop":                     b.recoverFromStop,
		"is_safe_enter":                         b.isSafeEnter,
		"turn_left_at_next_intersection":        b.turnLeft,
		"turn_right_at_next_intersection":       b.turnRight,
		"go_straight_at_next_intersection":      b.goStraight,
		"say":                                   b.say,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

// Conversions

func (b *bindings) pushVehicle(L *lua.LState, v road.Vehicle) {
	if v == nil {
		L.Push(lua.LNil)
		return
	}
	ud, ok := b.vehicles[v]
	if !ok {
		ud = L.NewUserData()
		ud.Value = v
		L.SetMetatable(ud, L.GetTypeMetatable(vehicleTypeName))
		b.vehicles[v] = ud
	}
	L.Push(ud)
}

// optVehicle returns the vehicle at n, nil for a missing argument, and raises
// an argument error for anything else.
func (b *bindings) optVehicle(L *lua.LState, n int) road.Vehicle {
	lv := L.Get(n)
	if lv == lua.LNil {
		return nil
	}
	if ud, ok := lv.(*lua.LUserData); ok {
		if v, ok := ud.Value.(road.Vehicle); ok {
			return v
		}
	}
	L.ArgError(n, "vehicle expected")
	return nil
}

func (b *bindings) checkVehicle(L *lua.LState, n int) road.Vehicle {
	v := b.optVehicle(L, n)
	if v == nil {
		L.ArgError(n, "vehicle expected, got nil")
	}
	return v
}

func laneTable(L *lua.LState, idx road.LaneIndex) *lua.LTable {
	t := L.CreateTable(3, 0)
	t.RawSetInt(1, lua.LString(idx.From))
	t.RawSetInt(2, lua.LString(idx.To))
	t.RawSetInt(3, lua.LNumber(idx.Index))
	return t
}

func pushLane(L *lua.LState, idx road.LaneIndex, ok bool) {
	if !ok || idx.IsZero() {
		L.Push(lua.LNil)
		return
	}
	L.Push(laneTable(L, idx))
}

func pushLanes(L *lua.LState, lanes []road.LaneIndex) {
	t := L.CreateTable(len(lanes), 0)
	for i, idx := range lanes {
		t.RawSetInt(i+1, laneTable(L, idx))
	}
	L.Push(t)
}

// decodeLane converts a {from, to, index} table to a LaneIndex.
func decodeLane(lv lua.LValue) (road.LaneIndex, error) {
	t, ok := lv.(*lua.LTable)
	if !ok {
		return road.LaneIndex{}, fmt.Errorf("lane must be a table, got %s", lv.Type())
	}
	if n := t.Len(); n != 3 {
		return road.LaneIndex{}, fmt.Errorf("lane must have 3 elements, got %d", n)
	}
	from, ok := nodeName(t.RawGetInt(1))
	if !ok {
		return road.LaneIndex{}, fmt.Errorf("lane origin must be a string")
	}
	to, ok := nodeName(t.RawGetInt(2))
	if !ok {
		return road.LaneIndex{}, fmt.Errorf("lane destination must be a string")
	}
	num, ok := t.RawGetInt(3).(lua.LNumber)
	if !ok {
		return road.LaneIndex{}, fmt.Errorf("lane index must be a number")
	}
	f := float64(num)
	if f < 0 || f != math.Trunc(f) {
		return road.LaneIndex{}, fmt.Errorf("lane index must be a non-negative integer, got %v", f)
	}
	return road.LaneIndex{From: from, To: to, Index: int(f)}, nil
}

func nodeName(lv lua.LValue) (road.NodeID, bool) {
	switch v := lv.(type) {
	case lua.LString:
		return road.NodeID(v), v != ""
	case lua.LNumber:
		return road.NodeID(v.String()), true
	default:
		return "", false
	}
}

// optLane returns the lane at n, the zero lane for nil, and raises an
// argument error for malformed input.
func optLane(L *lua.LState, n int) road.LaneIndex {
	lv := L.Get(n)
	if lv == lua.LNil {
		return road.LaneIndex{}
	}
	idx, err := decodeLane(lv)
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return idx
}

func pushCommand(L *lua.LState, cmd control.Command) {
	t := L.CreateTable(2, 0)
	t.RawSetInt(1, lua.LNumber(cmd.Acceleration))
	t.RawSetInt(2, lua.LNumber(cmd.Steering))
	L.Push(t)
}

// decodeCommand validates the values yielded by one resume.
func decodeCommand(values []lua.LValue) (control.Command, error) {
	if len(values) != 1 {
		return control.Command{}, fmt.Errorf("%w: yielded %d values, want 1", ErrInvalidCommand, len(values))
	}
	t, ok := values[0].(*lua.LTable)
	if !ok {
		return control.Command{}, fmt.Errorf("%w: yielded %s, want table", ErrInvalidCommand, values[0].Type())
	}
	if n := t.Len(); n != 2 {
		return control.Command{}, fmt.Errorf("%w: command has %d elements, want 2", ErrInvalidCommand, n)
	}
	acc, ok1 := t.RawGetInt(1).(lua.LNumber)
	steer, ok2 := t.RawGetInt(2).(lua.LNumber)
	if !ok1 || !ok2 {
		return control.Command{}, fmt.Errorf("%w: command elements must be numbers", ErrInvalidCommand)
	}
	cmd := control.Command{Acceleration: float64(acc), Steering: float64(steer)}
	if math.IsNaN(cmd.Acceleration) || math.IsNaN(cmd.Steering) ||
		math.IsInf(cmd.Acceleration, 0) || math.IsInf(cmd.Steering, 0) {
		return control.Command{}, fmt.Errorf("%w: command must be finite", ErrInvalidCommand)
	}
	return cmd.Clipped(), nil
}

// Vehicle metatable

func (b *bindings) vehicleIndex(L *lua.LState) int {
	v := b.checkVehicle(L, 1)
	switch L.CheckString(2) {
	case "speed":
		L.Push(lua.LNumber(v.Speed()))
	case "heading":
		L.Push(lua.LNumber(v.Heading()))
	case "x":
		L.Push(lua.LNumber(v.Position().X))
	case "y":
		L.Push(lua.LNumber(v.Position().Y))
	case "length":
		L.Push(lua.LNumber(v.Length()))
	case "lane":
		pushLane(L, v.LaneIndex(), true)
	default:
		L.Push(lua.LNil)
	}
	return 1
}

func (b *bindings) vehicleString(L *lua.LState) int {
	v := b.checkVehicle(L, 1)
	p := v.Position()
	L.Push(lua.LString(fmt.Sprintf("vehicle(x=%.1f, y=%.1f, speed=%.1f)", p.X, p.Y, v.Speed())))
	return 1
}

// Ego and state

func (b *bindings) getEgoVehicle(L *lua.LState) int {
	b.pushVehicle(L, b.caps.EgoVehicle())
	return 1
}

func (b *bindings) getTargetSpeed(L *lua.LState) int {
	L.Push(lua.LNumber(b.caps.TargetSpeed()))
	return 1
}

func (b *bindings) getDesiredTimeHeadway(L *lua.LState) int {
	L.Push(lua.LNumber(b.caps.DesiredTimeHeadway()))
	return 1
}

func (b *bindings) setTargetSpeed(L *lua.LState) int {
	b.caps.SetTargetSpeed(float64(L.CheckNumber(1)))
	return 0
}

func (b *bindings) setTargetLane(L *lua.LState) int {
	idx, err := decodeLane(L.Get(1))
	if err != nil {
		idx = road.LaneIndex{}
	}
	b.caps.SetTargetLane(idx)
	return 0
}

func (b *bindings) setDesiredTimeHeadway(L *lua.LState) int {
	b.caps.SetDesiredTimeHeadway(float64(L.CheckNumber(1)))
	return 0
}

// Perception

func (b *bindings) getSpeedOf(L *lua.LState) int {
	L.Push(lua.LNumber(b.caps.SpeedOf(b.checkVehicle(L, 1))))
	return 1
}

func (b *bindings) getLaneOf(L *lua.LState) int {
	pushLane(L, b.caps.LaneOf(b.checkVehicle(L, 1)), true)
	return 1
}

func (b *bindings) detectFrontVehicleIn(L *lua.LState) int {
	lane := optLane(L, 1)
	d := float64(L.OptNumber(2, lua.LNumber(perception.DefaultRange)))
	b.pushVehicle(L, b.caps.DetectFrontVehicleIn(lane, d))
	return 1
}

func (b *bindings) detectRearVehicleIn(L *lua.LState) int {
	lane := optLane(L, 1)
	d := float64(L.OptNumber(2, lua.LNumber(perception.DefaultRange)))
	b.pushVehicle(L, b.caps.DetectRearVehicleIn(lane, d))
	return 1
}

func (b *bindings) getDistanceBetweenVehicles(L *lua.LState) int {
	v1 := b.checkVehicle(L, 1)
	v2 := b.checkVehicle(L, 2)
	L.Push(lua.LNumber(b.caps.DistanceBetweenVehicles(v1, v2)))
	return 1
}

func (b *bindings) getLeftLane(L *lua.LState) int {
	idx, ok := b.caps.LeftLane(b.optVehicle(L, 1), optLane(L, 2))
	pushLane(L, idx, ok)
	return 1
}

func (b *bindings) getRightLane(L *lua.LState) int {
	idx, ok := b.caps.RightLane(b.optVehicle(L, 1), optLane(L, 2))
	pushLane(L, idx, ok)
	return 1
}

func (b *bindings) getLeftToRightCrossTrafficLanes(L *lua.LState) int {
	pushLanes(L, b.caps.LeftToRightCrossTrafficLanes())
	return 1
}

func (b *bindings) getRightToLeftCrossTrafficLanes(L *lua.LState) int {
	pushLanes(L, b.caps.RightToLeftCrossTrafficLanes())
	return 1
}

func (b *bindings) detectStopSignAhead(L *lua.LState) int {
	L.Push(lua.LNumber(b.caps.DetectStopSignAhead()))
	return 1
}

// Control

func (b *bindings) autopilot(L *lua.LState) int {
	pushCommand(L, b.caps.Autopilot())
	return 1
}

func (b *bindings) recoverFromStop(L *lua.LState) int {
	b.caps.RecoverFromStop()
	return 0
}

func (b *bindings) isSafeEnter(L *lua.LState) int {
	if L.Get(1) == lua.LNil {
		L.Push(lua.LFalse)
		return 1
	}
	lane := optLane(L, 1)
	decel := float64(L.OptNumber(2, defaultSafeDeceleration))
	L.Push(lua.LBool(b.caps.IsSafeEnter(lane, decel)))
	return 1
}

// Route

func (b *bindings) turnLeft(L *lua.LState) int {
	b.caps.TurnLeftAtNextIntersection()
	return 0
}

func (b *bindings) turnRight(L *lua.LState) int {
	b.caps.TurnRightAtNextIntersection()
	return 0
}

func (b *bindings) goStraight(L *lua.LState) int {
	b.caps.GoStraightAtNextIntersection()
	return 0
}

// Messages

func (b *bindings) say(L *lua.LState) int {
	b.caps.Say(L.ToStringMeta(L.Get(1)).String())
	return 0
}
