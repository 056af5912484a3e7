package main

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// validateLabel enforces the single-label invariant shared by user and
// node domains: the claimed name is one DNS label, never a dotted path.
func validateLabel(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return validationError("subdomain is required")
	}
	if strings.Contains(label, ".") {
		return validationError("subdomain cannot contain dots")
	}
	if len(label) > 63 {
		return validationError("subdomain exceeds 63 characters")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", validationError("password must be at least 8 characters")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func verifyPassword(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// newAPIKey draws keys until one is unused by both users and nodes, so a
// bare key always resolves to exactly one principal.
func (st *principalStore) newAPIKey() (string, error) {
	for i := 0; i < 5; i++ {
		key := randomKey()

		var count int64
		if err := st.db.Model(&userModel{}).Where("api_key = ?", key).Count(&count).Error; err != nil {
			return "", err
		}
		if count > 0 {
			continue
		}
		if err := st.db.Model(&nodeModel{}).Where("api_key = ?", key).Count(&count).Error; err != nil {
			return "", err
		}
		if count > 0 {
			continue
		}
		return key, nil
	}
	return "", errors.New("api key space exhausted")
}

func (st *principalStore) createUser(name, email, password, subdomain string) (*userModel, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))

	if name == "" {
		return nil, validationError("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationError("a valid email is required")
	}
	if err := validateLabel(subdomain); err != nil {
		return nil, err
	}
	digest, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := st.db.Model(&userModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, conflictError("a user already exists with that email address")
	}
	if err := st.db.Model(&userModel{}).Where("domain = ?", subdomain).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, conflictError("this subdomain is already in use")
	}

	apiKey, err := st.newAPIKey()
	if err != nil {
		return nil, err
	}

	u := &userModel{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		PasswordDigest: digest,
		Domain:         subdomain,
		APIKey:         apiKey,
	}
	if err := st.db.Create(u).Error; err != nil {
		// Racing creates are decided by the unique indexes.
		if isDuplicate(err) {
			return nil, conflictError("email or subdomain is already in use")
		}
		return nil, err
	}
	return u, nil
}

func (st *principalStore) userByID(id string) (*userModel, error) {
	var u userModel
	err := st.db.First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (st *principalStore) userByEmail(email string) (*userModel, error) {
	var u userModel
	err := st.db.First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (st *principalStore) userByAPIKey(key string) (*userModel, error) {
	var u userModel
	err := st.db.First(&u, "api_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (st *principalStore) listUsers() ([]userModel, error) {
	var users []userModel
	if err := st.db.Order("created_at").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (st *principalStore) updateUser(id string, req updateUserRequest) (*userModel, error) {
	u, err := st.userByID(id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		u.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		if !strings.Contains(email, "@") {
			return nil, validationError("a valid email is required")
		}
		u.Email = email
	}
	if req.Password != "" {
		digest, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordDigest = digest
	}
	if req.RotateAPIKey {
		key, err := st.newAPIKey()
		if err != nil {
			return nil, err
		}
		u.APIKey = key
	}

	if err := st.db.Save(u).Error; err != nil {
		if isDuplicate(err) {
			return nil, conflictError("email is already in use")
		}
		return nil, err
	}
	return u, nil
}

// deleteUser removes the user together with its nodes and sessions. The
// schema cascades too, but sqlite only honors that with foreign keys
// enabled, so the delete is explicit.
func (st *principalStore) deleteUser(id string) error {
	if _, err := st.userByID(id); err != nil {
		return err
	}
	return st.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&nodeModel{}, "owner_user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&sessionModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&userModel{}, "id = ?", id).Error
	})
}

func (st *principalStore) createNode(ownerUserID, subdomain string) (*nodeModel, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if err := validateLabel(subdomain); err != nil {
		return nil, err
	}
	if _, err := st.userByID(ownerUserID); err != nil {
		return nil, err
	}

	var count int64
	if err := st.db.Model(&nodeModel{}).
		Where("owner_user_id = ? AND domain = ?", ownerUserID, subdomain).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, conflictError("this node subdomain is already in use")
	}

	apiKey, err := st.newAPIKey()
	if err != nil {
		return nil, err
	}

	n := &nodeModel{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Domain:      subdomain,
		APIKey:      apiKey,
	}
	if err := st.db.Create(n).Error; err != nil {
		if isDuplicate(err) {
			return nil, conflictError("this node subdomain is already in use")
		}
		return nil, err
	}
	return n, nil
}

func (st *principalStore) nodeByID(id string) (*nodeModel, error) {
	var n nodeModel
	err := st.db.First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("node not found")
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (st *principalStore) nodeByAPIKey(key string) (*nodeModel, error) {
	var n nodeModel
	err := st.db.First(&n, "api_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("node not found")
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (st *principalStore) nodesByOwner(ownerUserID string) ([]nodeModel, error) {
	var nodes []nodeModel
	if err := st.db.Order("created_at").Find(&nodes, "owner_user_id = ?", ownerUserID).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func (st *principalStore) listNodes() ([]nodeModel, error) {
	var nodes []nodeModel
	if err := st.db.Order("created_at").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func (st *principalStore) updateNode(id string, req updateNodeRequest) (*nodeModel, error) {
	n, err := st.nodeByID(id)
	if err != nil {
		return nil, err
	}

	if req.Subdomain != "" {
		subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
		if err := validateLabel(subdomain); err != nil {
			return nil, err
		}
		n.Domain = subdomain
	}
	if req.RotateAPIKey {
		key, err := st.newAPIKey()
		if err != nil {
			return nil, err
		}
		n.APIKey = key
	}

	if err := st.db.Save(n).Error; err != nil {
		if isDuplicate(err) {
			return nil, conflictError("this node subdomain is already in use")
		}
		return nil, err
	}
	return n, nil
}

func (st *principalStore) deleteNode(id string) error {
	if _, err := st.nodeByID(id); err != nil {
		return err
	}
	return st.db.Delete(&nodeModel{}, "id = ?", id).Error
}

func (st *principalStore) createSession(userID string, ttl time.Duration) (string, error) {
	s := &sessionModel{
		Token:     randomKey(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := st.db.Create(s).Error; err != nil {
		return "", err
	}
	return s.Token, nil
}

func (st *principalStore) sessionUser(token string) (*userModel, error) {
	var s sessionModel
	err := st.db.First(&s, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("session not found")
	}
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		_ = st.db.Delete(&sessionModel{}, "token = ?", token).Error
		return nil, notFoundError("session expired")
	}
	return st.userByID(s.UserID)
}

func (st *principalStore) deleteSession(token string) error {
	return st.db.Delete(&sessionModel{}, "token = ?", token).Error
}
