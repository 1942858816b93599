package metrics

const (
	SimStepsH               = "The total number of simulation steps executed"
	SimStepsN               = "fuzzyfollow_sim_steps"
	SimFallbacksH           = "The total number of steps in which no fuzzy rule fired and the fallback output was used"
	SimFallbacksN           = "fuzzyfollow_sim_fallbacks"
	SimSaturationsH         = "The total number of steps in which the control output was clamped to the actuation limits"
	SimSaturationsN         = "fuzzyfollow_sim_saturations"
	SimIntegralSaturationsH = "The total number of steps in which the integral trim was clamped"
	SimIntegralSaturationsN = "fuzzyfollow_sim_integral_saturations"

	SimDistanceErrorH = "The current distance error (distance minus setpoint)"
	SimDistanceErrorN = "fuzzyfollow_sim_distance_error"
	SimControlOutputH = "The current control output applied to the follower"
	SimControlOutputN = "fuzzyfollow_sim_control_output"
)
