package analyzer

const analysisPrompt = `Analyze this voice phishing penetration test transcript. The attacker posed as IT support and tried to extract an OTP code from the target.

Valid OTP codes that were sent: %s

Transcript:
%s

Analyze the transcript and provide a structured assessment:

1. Did the target disclose any OTP code? If yes, which one?
2. How confident are you in this assessment?
3. Explain your reasoning
4. Rate the security risk (how susceptible was the target?)
5. Provide recommendations for the target's security training

Respond in this exact JSON format:
{
    "success": true/false,
    "extracted_otp": "123456" or null,
    "confidence": "high"/"medium"/"low",
    "reasoning": "explanation of what happened",
    "risk_assessment": "assessment of target's susceptibility",
    "recommendations": ["recommendation 1", "recommendation 2"]
}`
