package model

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	at := func(h int) time.Time {
		return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name         string
		aStart, aEnd int
		bStart, bEnd int
		want         bool
	}{
		{"部分重叠", 10, 12, 11, 13, true},
		{"完全包含", 8, 18, 10, 12, true},
		{"被包含", 10, 12, 8, 18, true},
		{"完全相同", 10, 12, 10, 12, true},
		{"首尾相接（后）", 12, 13, 10, 12, false},
		{"首尾相接（前）", 8, 10, 10, 12, false},
		{"完全分离", 8, 9, 10, 12, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(at(tt.aStart), at(tt.aEnd), at(tt.bStart), at(tt.bEnd))
			if got != tt.want {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
			// 对称性
			if rev := Overlaps(at(tt.bStart), at(tt.bEnd), at(tt.aStart), at(tt.aEnd)); rev != got {
				t.Errorf("重叠判断应对称，正向 %v 反向 %v", got, rev)
			}
		})
	}
}

func TestHasPermission(t *testing.T) {
	if !HasPermission(RoleAdmin, PermManageUsers) {
		t.Error("admin 应拥有 manage_users")
	}
	if HasPermission(RoleEditor, PermDelete) {
		t.Error("editor 不应拥有 delete")
	}
	if !HasPermission(RoleUser, PermRead) || HasPermission(RoleUser, PermWrite) {
		t.Error("user 仅拥有 read")
	}
	if HasPermission("guest", PermRead) {
		t.Error("未知角色不应拥有任何权限")
	}
}
