package log

import "testing"

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{DirectionIn, "IN"},
		{DirectionOut, "OUT"},
		{Direction(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.dir.String()
		if got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestLayerString(t *testing.T) {
	tests := []struct {
		layer Layer
		want  string
	}{
		{LayerTransport, "TRANSPORT"},
		{LayerWire, "WIRE"},
		{LayerConnection, "CONNECTION"},
		{Layer(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.layer.String()
		if got != tt.want {
			t.Errorf("Layer(%d).String() = %q, want %q", tt.layer, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryMessage, "MESSAGE"},
		{CategoryControl, "CONTROL"},
		{CategoryState, "STATE"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.cat.String()
		if got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestRoleString(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleClient, "CLIENT"},
		{RoleSimulator, "SIMULATOR"},
		{Role(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.role.String()
		if got != tt.want {
			t.Errorf("Role(%d).String() = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestPacketKindString(t *testing.T) {
	tests := []struct {
		kind PacketKind
		want string
	}{
		{PacketKindRequest, "REQUEST"},
		{PacketKindResponse, "RESPONSE"},
		{PacketKindCallback, "CALLBACK"},
		{PacketKind(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.kind.String()
		if got != tt.want {
			t.Errorf("PacketKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestStateEntityString(t *testing.T) {
	tests := []struct {
		entity StateEntity
		want   string
	}{
		{StateEntityConnection, "CONNECTION"},
		{StateEntityDevice, "DEVICE"},
		{StateEntity(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.entity.String()
		if got != tt.want {
			t.Errorf("StateEntity(%d).String() = %q, want %q", tt.entity, got, tt.want)
		}
	}
}

func TestControlMsgTypeString(t *testing.T) {
	tests := []struct {
		cmt  ControlMsgType
		want string
	}{
		{ControlMsgProbe, "PROBE"},
		{ControlMsgEnumerate, "ENUMERATE"},
		{ControlMsgType(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.cmt.String()
		if got != tt.want {
			t.Errorf("ControlMsgType(%d).String() = %q, want %q", tt.cmt, got, tt.want)
		}
	}
}

func TestEnumValuesAreStable(t *testing.T) {
	// Values are persisted in capture files.
	checks := []struct {
		name string
		got  uint8
		want uint8
	}{
		{"DirectionOut", uint8(DirectionOut), 1},
		{"LayerConnection", uint8(LayerConnection), 2},
		{"CategoryError", uint8(CategoryError), 3},
		{"RoleSimulator", uint8(RoleSimulator), 1},
		{"PacketKindCallback", uint8(PacketKindCallback), 2},
		{"StateEntityDevice", uint8(StateEntityDevice), 1},
		{"ControlMsgEnumerate", uint8(ControlMsgEnumerate), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
}
