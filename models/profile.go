package models

// ProfileUpdate changes the public profile. Nil fields are left untouched.
type ProfileUpdate struct {
	Name *string `bson:"name,omitempty" json:"name"`
	Bio  *string `bson:"bio,omitempty" json:"bio"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Bio == nil
}
