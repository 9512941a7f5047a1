package testdb

import "github.com/google/uuid"

// TBDProjectID is the id the migrations give the TBD sentinel project
var TBDProjectID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
