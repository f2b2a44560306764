package asdu

import (
	"fmt"
	"strings"
)

// TypeID identifies the ASDU layout.
type TypeID uint8

const (
	MSpNa1 TypeID = 1   // single-point information
	MDpNa1 TypeID = 3   // double-point information
	MStNa1 TypeID = 5   // step position
	MBoNa1 TypeID = 7   // 32-bit bitstring
	MMeNa1 TypeID = 9   // measured value, normalized
	MMeNb1 TypeID = 11  // measured value, scaled
	MMeNc1 TypeID = 13  // measured value, short float
	MSpTb1 TypeID = 30  // single-point with CP56Time2a
	MDpTb1 TypeID = 31  // double-point with CP56Time2a
	MMeTd1 TypeID = 34  // normalized with CP56Time2a
	MMeTe1 TypeID = 35  // scaled with CP56Time2a
	MMeTf1 TypeID = 36  // decoded with the normalized layout plus CP56Time2a
	MItTb1 TypeID = 37  // decoded with the scaled layout plus CP56Time2a
	MEpTd1 TypeID = 38  // decoded with the float layout plus CP56Time2a
	CScNa1 TypeID = 45  // single command
	CDcNa1 TypeID = 46  // double command
	CIcNa1 TypeID = 100 // interrogation command
)

var typeNames = map[TypeID]string{
	MSpNa1: "M_SP_NA_1",
	MDpNa1: "M_DP_NA_1",
	MStNa1: "M_ST_NA_1",
	MBoNa1: "M_BO_NA_1",
	MMeNa1: "M_ME_NA_1",
	MMeNb1: "M_ME_NB_1",
	MMeNc1: "M_ME_NC_1",
	MSpTb1: "M_SP_TB_1",
	MDpTb1: "M_DP_TB_1",
	MMeTd1: "M_ME_TD_1",
	MMeTe1: "M_ME_TE_1",
	MMeTf1: "M_ME_TF_1",
	MItTb1: "M_IT_TB_1",
	MEpTd1: "M_EP_TD_1",
	CScNa1: "C_SC_NA_1",
	CDcNa1: "C_DC_NA_1",
	CIcNa1: "C_IC_NA_1",
}

func (t TypeID) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE_%d", uint8(t))
}

// Monitoring reports whether t travels in the monitor direction.
func (t TypeID) Monitoring() bool {
	return t > 0 && t < 45
}

// Cause is the 6-bit cause of transmission.
type Cause uint8

const (
	CausePeriodic          Cause = 1
	CauseBackground        Cause = 2
	CauseSpontaneous       Cause = 3
	CauseInitialized       Cause = 4
	CauseRequest           Cause = 5
	CauseActivation        Cause = 6
	CauseActivationCon     Cause = 7
	CauseDeactivation      Cause = 8
	CauseDeactivationCon   Cause = 9
	CauseActivationTerm    Cause = 10
	CauseReturnRemote      Cause = 11
	CauseReturnLocal       Cause = 12
	CauseInterrogated      Cause = 20
	CauseUnknownType       Cause = 44
	CauseUnknownCause      Cause = 45
	CauseUnknownCommonAddr Cause = 46
	CauseUnknownIOA        Cause = 47
)

var causeNames = map[Cause]string{
	CausePeriodic:          "periodic",
	CauseBackground:        "background",
	CauseSpontaneous:       "spontaneous",
	CauseInitialized:       "initialized",
	CauseRequest:           "request",
	CauseActivation:        "activation",
	CauseActivationCon:     "activation_con",
	CauseDeactivation:      "deactivation",
	CauseDeactivationCon:   "deactivation_con",
	CauseActivationTerm:    "activation_term",
	CauseReturnRemote:      "return_remote",
	CauseReturnLocal:       "return_local",
	CauseInterrogated:      "interrogated",
	CauseUnknownType:       "unknown_type",
	CauseUnknownCause:      "unknown_cause",
	CauseUnknownCommonAddr: "unknown_common_address",
	CauseUnknownIOA:        "unknown_ioa",
}

func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	if c > CauseInterrogated && c <= 36 {
		return fmt.Sprintf("interrogated_group_%d", c-CauseInterrogated)
	}
	return fmt.Sprintf("cause_%d", uint8(c))
}

// ParseTypeID accepts a mnemonic such as "M_SP_NA_1", case-insensitive.
func ParseTypeID(name string) (TypeID, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}
