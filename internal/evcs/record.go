package evcs

import (
	"time"

	"github.com/google/uuid"
)

// VersionFields is the bitemporal row shape shared by every tracked entity.
// One row is one immutable snapshot of an entity's state for one span of
// valid time. Embed it in a version model and implement RootID/SetRootID
// with the entity's own root column to satisfy Snapshot.
//
// Validity is the half-open interval [ValidFrom, ValidTo); ValidTo == nil
// means the snapshot is current. TxFrom/TxTo record system time
// independently of business time.
type VersionFields struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ValidFrom time.Time  `gorm:"column:valid_from;not null;index" json:"valid_from"`
	ValidTo   *time.Time `gorm:"column:valid_to;index" json:"valid_to,omitempty"`
	TxFrom    time.Time  `gorm:"column:tx_from;not null" json:"tx_from"`
	TxTo      *time.Time `gorm:"column:tx_to" json:"tx_to,omitempty"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index" json:"deleted_at,omitempty"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
}

func (v *VersionFields) VersionID() uuid.UUID      { return v.ID }
func (v *VersionFields) SetVersionID(id uuid.UUID) { v.ID = id }
func (v *VersionFields) ValidSince() time.Time     { return v.ValidFrom }
func (v *VersionFields) ValidUntil() *time.Time    { return v.ValidTo }
func (v *VersionFields) DeletedTime() *time.Time   { return v.DeletedAt }
func (v *VersionFields) AuditActor() *uuid.UUID    { return v.CreatedBy }

func (v *VersionFields) MarkDeleted(at time.Time) { v.DeletedAt = &at }
func (v *VersionFields) ClearDeleted()            { v.DeletedAt = nil }

// IsCurrent reports whether this snapshot is the open, non-deleted head of
// its (root, branch) timeline.
func (v *VersionFields) IsCurrent() bool {
	return v.ValidTo == nil && v.DeletedAt == nil
}

// BeginSpan gives a cloned snapshot a fresh identity and an open-ended
// validity starting at the operation timestamp. Business fields are left
// untouched; the delete marker is cleared because a new span always opens
// live.
func (v *VersionFields) BeginSpan(id uuid.UUID, at time.Time, by *uuid.UUID) {
	v.ID = id
	v.ValidFrom = at
	v.ValidTo = nil
	v.TxFrom = at
	v.TxTo = nil
	v.DeletedAt = nil
	v.CreatedBy = by
}

// BranchFields extends VersionFields for entities with branching support.
// ParentID links a snapshot to the one it superseded or was derived from;
// MergeFromBranch records the source branch of a merge snapshot.
type BranchFields struct {
	Branch          string     `gorm:"column:branch;size:80;not null;default:'main';index" json:"branch"`
	ParentID        *uuid.UUID `gorm:"type:uuid;column:parent_id;index" json:"parent_id,omitempty"`
	MergeFromBranch *string    `gorm:"column:merge_from_branch;size:80" json:"merge_from_branch,omitempty"`
}

func (b *BranchFields) BranchName() string              { return b.Branch }
func (b *BranchFields) SetBranchName(name string)       { b.Branch = name }
func (b *BranchFields) ParentVersionID() *uuid.UUID     { return b.ParentID }
func (b *BranchFields) SetParentVersionID(id *uuid.UUID) { b.ParentID = id }
func (b *BranchFields) MergeSource() *string            { return b.MergeFromBranch }
func (b *BranchFields) SetMergeSource(branch *string)   { b.MergeFromBranch = branch }

// MainBranch is the implicit branch of entities without branching support.
const MainBranch = "main"

// Snapshot is the capability contract generic commands operate on. It is
// satisfied by embedding VersionFields and adding the typed root accessors.
type Snapshot interface {
	VersionID() uuid.UUID
	SetVersionID(uuid.UUID)
	RootID() uuid.UUID
	SetRootID(uuid.UUID)
	ValidSince() time.Time
	ValidUntil() *time.Time
	DeletedTime() *time.Time
	MarkDeleted(time.Time)
	ClearDeleted()
	BeginSpan(id uuid.UUID, at time.Time, by *uuid.UUID)
	AuditActor() *uuid.UUID
}

// Branchable extends Snapshot for entities that support branch timelines.
type Branchable interface {
	Snapshot
	BranchName() string
	SetBranchName(string)
	ParentVersionID() *uuid.UUID
	SetParentVersionID(*uuid.UUID)
	MergeSource() *string
	SetMergeSource(*string)
}

// SnapshotPtr constrains a command's type parameters so *T carries the
// Snapshot methods while T stays a plain struct gorm can map. Cloning a
// snapshot is a value copy of T followed by BeginSpan.
type SnapshotPtr[T any] interface {
	*T
	Snapshot
}

// BranchablePtr is the branch-capable analogue of SnapshotPtr.
type BranchablePtr[T any] interface {
	*T
	Branchable
}
