package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the clear-text password of every fixture user
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a user of the given type; tlName may be empty
func (tf *TestFixtures) CreateTestUser(username, userType, tlName string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		FullName:  "Test " + username,
		Username:  username,
		UserEmail: fmt.Sprintf("%s.%d@example.com", username, rand.Intn(1000000)),
		Password:  string(hashedPassword),
		UserType:  userType,
	}
	if tlName != "" {
		user.TLName = utils.ToPtr(tlName)
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestLead creates a lead owned by callBy with the given status
func (tf *TestFixtures) CreateTestLead(callBy, callStatus string) (*models.Lead, error) {
	lead := NewTestLead(callBy, callStatus)
	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create test lead: %w", err)
	}
	return lead, nil
}

// CreateTestLeads creates n leads owned by callBy with the given status
func (tf *TestFixtures) CreateTestLeads(n int, callBy, callStatus string) ([]*models.Lead, error) {
	leads := make([]*models.Lead, 0, n)
	for range n {
		lead, err := tf.CreateTestLead(callBy, callStatus)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// CreateTestCall appends a completed call for a lead
func (tf *TestFixtures) CreateTestCall(leadID uint, doneBy, status string, doneAt time.Time) (*models.CallHistory, error) {
	row := &models.CallHistory{
		LeadID:     leadID,
		AssignFrom: doneBy,
		Status:     status,
		CallDoneAt: utils.ToPtr(doneAt.UTC()),
		CallDoneBy: doneBy,
	}
	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create test call: %w", err)
	}
	return row, nil
}

// NewTestLead builds an unsaved lead with a random contact number
func NewTestLead(callBy, callStatus string) *models.Lead {
	today := utils.TodayUTC()
	return &models.Lead{
		FirstName:     "John",
		LastName:      "Doe",
		EmailID:       "john.doe@example.com",
		ContactNumber: fmt.Sprintf("9%09d", rand.Intn(1000000000)),
		CallStatus:    callStatus,
		ProductName:   "Skyline Towers",
		UnitType:      "2BHK",
		Budget:        "5000000",
		CallBy:        callBy,
		PostingDate:   &today,
		SubmitOn:      &today,
	}
}
